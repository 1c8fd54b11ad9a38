// Package event defines the closed set of event payloads that make up the
// sync log, and the envelope that carries one alongside its causality
// metadata.
package event

import "fmt"

// Kind discriminates the tagged-variant event payload, the same role the
// teacher's inter/drivertype package plays for validator status bits: a
// small byte enum with a String method, used on the wire to tag each
// envelope's payload.
type Kind uint8

const (
	ExtensionAddedKind Kind = iota + 1
	ExtensionRemovedKind
	ExtensionInstalledKind
	ExtensionUninstalledKind
	ContainerAddedKind
	ContainerRemovedKind
	ContainerUpdatedKind
	HandlerSetKind
	HandlerRemovedKind
	SearchEngineAddedKind
	SearchEngineRemovedKind
	SearchEngineDefaultKind
	PrefSetKind
	PrefRemovedKind
	TabSentKind
	TabReceivedKind
)

func (k Kind) String() string {
	switch k {
	case ExtensionAddedKind:
		return "ExtensionAdded"
	case ExtensionRemovedKind:
		return "ExtensionRemoved"
	case ExtensionInstalledKind:
		return "ExtensionInstalled"
	case ExtensionUninstalledKind:
		return "ExtensionUninstalled"
	case ContainerAddedKind:
		return "ContainerAdded"
	case ContainerRemovedKind:
		return "ContainerRemoved"
	case ContainerUpdatedKind:
		return "ContainerUpdated"
	case HandlerSetKind:
		return "HandlerSet"
	case HandlerRemovedKind:
		return "HandlerRemoved"
	case SearchEngineAddedKind:
		return "SearchEngineAdded"
	case SearchEngineRemovedKind:
		return "SearchEngineRemoved"
	case SearchEngineDefaultKind:
		return "SearchEngineDefault"
	case PrefSetKind:
		return "PrefSet"
	case PrefRemovedKind:
		return "PrefRemoved"
	case TabSentKind:
		return "TabSent"
	case TabReceivedKind:
		return "TabReceived"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}
