package model

// Schema names an FA form version
type Schema string

const (
	SchemaFA2     Schema = "FA(2)"
	SchemaFA3     Schema = "FA(3)"
	SchemaUnknown Schema = "unknown"
)

// Root namespaces of the published FA schemas
const (
	NamespaceFA2 = "http://crd.gov.pl/wzor/2023/06/29/12648/"
	NamespaceFA3 = "http://crd.gov.pl/wzor/2025/06/25/13775/"
)

// SchemaForNamespace maps a root namespace to its schema
func SchemaForNamespace(ns string) Schema {
	switch ns {
	case NamespaceFA2:
		return SchemaFA2
	case NamespaceFA3:
		return SchemaFA3
	default:
		return SchemaUnknown
	}
}
