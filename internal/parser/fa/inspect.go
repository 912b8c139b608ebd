package fa

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/ksef-pdf/internal/model"
)

const rootTag = "Faktura"

// DocumentInfo is what can be read from an FA document without decoding it
type DocumentInfo struct {
	Namespace string         `json:"namespace"`
	FormCode  model.FormCode `json:"form_code"`
	Schema    model.Schema   `json:"schema"`
}

// Inspect reads the root namespace and the form code of an FA document
func Inspect(content []byte) (*DocumentInfo, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, model.NewParseError(string(model.SchemaUnknown), "xml", "failed to read XML", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != rootTag {
		return nil, model.NewParseError(string(model.SchemaUnknown), "root", "document root is not Faktura", nil)
	}

	info := &DocumentInfo{Namespace: root.NamespaceURI()}
	if kf := root.FindElement("Naglowek/KodFormularza"); kf != nil {
		info.FormCode.Value = strings.TrimSpace(kf.Text())
		info.FormCode.SystemCode = kf.SelectAttrValue("kodSystemowy", "")
		info.FormCode.SchemaVersion = kf.SelectAttrValue("wersjaSchemy", "")
	}
	if wf := root.FindElement("Naglowek/WariantFormularza"); wf != nil {
		info.FormCode.Variant, _ = strconv.Atoi(strings.TrimSpace(wf.Text()))
	}

	info.Schema = model.SchemaForNamespace(info.Namespace)
	if info.Schema == model.SchemaUnknown {
		switch info.FormCode.Variant {
		case 2:
			info.Schema = model.SchemaFA2
		case 3:
			info.Schema = model.SchemaFA3
		}
	}
	return info, nil
}
