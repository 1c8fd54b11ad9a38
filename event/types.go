package event

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

// Event is implemented by every payload variant in the closed set. It plays
// the role a type switch over inter's iblockproc variants plays in the
// teacher: dispatch on Kind, not on a visitor interface.
type Event interface {
	Kind() Kind
}

// PrefType tags the dynamic type carried by a PrefSet value.
type PrefType uint8

const (
	PrefBool PrefType = iota + 1
	PrefInt
	PrefString
)

// ExtensionAdded records an extension the diff engine observed present in
// the profile with no corresponding index row.
type ExtensionAdded struct {
	ID        string
	Name      string
	SourceURL string // empty if none
}

func (ExtensionAdded) Kind() Kind { return ExtensionAddedKind }

// ExtensionRemoved records an extension id no longer present in the profile.
type ExtensionRemoved struct {
	ID string
}

func (ExtensionRemoved) Kind() Kind { return ExtensionRemovedKind }

// PackageSource describes where an installed extension's bytes came from.
type PackageSource struct {
	Kind string // e.g. "amo", "url", "local"
	Data string
}

// ExtensionInstalled carries a full extension package: version metadata plus
// the zstd-compressed, base64-encoded XPI bytes (§8.5: packages travel
// inside the same encrypted envelope as metadata).
type ExtensionInstalled struct {
	ID             string
	Version        string
	Source         PackageSource
	PackageBlobB64 string
}

func (ExtensionInstalled) Kind() Kind { return ExtensionInstalledKind }

// ExtensionUninstalled removes both the extensions and extension_packages
// rows for ID.
type ExtensionUninstalled struct {
	ID string
}

func (ExtensionUninstalled) Kind() Kind { return ExtensionUninstalledKind }

// ContainerAdded records a newly observed container (Firefox "contextual
// identity").
type ContainerAdded struct {
	ID    string
	Name  string
	Color string
	Icon  string
}

func (ContainerAdded) Kind() Kind { return ContainerAddedKind }

// ContainerRemoved records a container id no longer present.
type ContainerRemoved struct {
	ID string
}

func (ContainerRemoved) Kind() Kind { return ContainerRemovedKind }

// ContainerUpdated is a partial update: any subset of Name/Color/Icon may be
// absent (nil). The materializer applies it only when all three are present
// (§4.5); the diff engine never emits it today (§9).
type ContainerUpdated struct {
	ID    string
	Name  *string
	Color *string
	Icon  *string
}

func (ContainerUpdated) Kind() Kind { return ContainerUpdatedKind }

// wireContainerUpdated is ContainerUpdated's RLP shape: RLP has no native
// nil-pointer-to-string encoding, so each optional field travels as an
// explicit presence flag alongside its value.
type wireContainerUpdated struct {
	ID        string
	HasName   bool
	Name      string
	HasColor  bool
	Color     string
	HasIcon   bool
	Icon      string
}

// EncodeRLP implements rlp.Encoder.
func (c ContainerUpdated) EncodeRLP(w io.Writer) error {
	wc := wireContainerUpdated{ID: c.ID}
	if c.Name != nil {
		wc.HasName, wc.Name = true, *c.Name
	}
	if c.Color != nil {
		wc.HasColor, wc.Color = true, *c.Color
	}
	if c.Icon != nil {
		wc.HasIcon, wc.Icon = true, *c.Icon
	}
	return rlp.Encode(w, &wc)
}

// DecodeRLP implements rlp.Decoder.
func (c *ContainerUpdated) DecodeRLP(s *rlp.Stream) error {
	var wc wireContainerUpdated
	if err := s.Decode(&wc); err != nil {
		return err
	}
	c.ID = wc.ID
	if wc.HasName {
		name := wc.Name
		c.Name = &name
	}
	if wc.HasColor {
		color := wc.Color
		c.Color = &color
	}
	if wc.HasIcon {
		icon := wc.Icon
		c.Icon = &icon
	}
	return nil
}

// HandlerSet registers or replaces the handler template for a protocol
// scheme (e.g. "mailto").
type HandlerSet struct {
	Protocol       string
	HandlerTemplate string
}

func (HandlerSet) Kind() Kind { return HandlerSetKind }

// HandlerRemoved removes the handler registered for Protocol.
type HandlerRemoved struct {
	Protocol string
}

func (HandlerRemoved) Kind() Kind { return HandlerRemovedKind }

// SearchEngineAdded records a new search engine entry. Default status is
// conveyed only through SearchEngineDefault.
type SearchEngineAdded struct {
	ID   string
	Name string
	URL  string
}

func (SearchEngineAdded) Kind() Kind { return SearchEngineAddedKind }

// SearchEngineRemoved removes a search engine entry by id.
type SearchEngineRemoved struct {
	ID string
}

func (SearchEngineRemoved) Kind() Kind { return SearchEngineRemovedKind }

// SearchEngineDefault clears the default flag on every row, then sets it on ID.
type SearchEngineDefault struct {
	ID string
}

func (SearchEngineDefault) Kind() Kind { return SearchEngineDefaultKind }

// PrefSet upserts a preference. Exactly one of BoolValue/IntValue/StringValue
// is meaningful, selected by Type.
type PrefSet struct {
	Key         string
	Type        PrefType
	BoolValue   bool
	IntValue    int64
	StringValue string
}

func (PrefSet) Kind() Kind { return PrefSetKind }

// PrefRemoved deletes a preference by key.
type PrefRemoved struct {
	Key string
}

func (PrefRemoved) Kind() Kind { return PrefRemovedKind }

// TabSent is a cross-device tab hand-off request. Title is optional (empty
// means absent).
type TabSent struct {
	ToDevice string
	URL      string
	Title    string
}

func (TabSent) Kind() Kind { return TabSentKind }

// TabReceived acknowledges a prior TabSent by the pending-tab row id it
// resolves.
type TabReceived struct {
	TabID string
}

func (TabReceived) Kind() Kind { return TabReceivedKind }
