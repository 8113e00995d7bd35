// ABOUTME: Declarative widget component tree streamed to chat clients
// ABOUTME: Components marshal to JSON nodes tagged with a "type" discriminator

package widgets

import "encoding/json"

// Component is a node in a widget tree. Each concrete component marshals to
// a JSON object carrying a "type" field naming the component.
type Component interface {
	component()
}

// Card is the root container for a widget.
type Card struct {
	Key      string      `json:"key,omitempty"`
	Size     string      `json:"size,omitempty"`
	Children []Component `json:"children,omitempty"`
}

// Col lays out children vertically.
type Col struct {
	Key      string      `json:"key,omitempty"`
	Gap      int         `json:"gap,omitempty"`
	Flex     int         `json:"flex,omitempty"`
	Children []Component `json:"children,omitempty"`
}

// Row lays out children horizontally.
type Row struct {
	Gap      int         `json:"gap,omitempty"`
	Align    string      `json:"align,omitempty"`
	Children []Component `json:"children,omitempty"`
}

// Text is a body text node.
type Text struct {
	Value    string `json:"value"`
	Size     string `json:"size,omitempty"`
	Weight   string `json:"weight,omitempty"`
	MaxLines int    `json:"maxLines,omitempty"`
}

// Title is a heading node.
type Title struct {
	Value string `json:"value"`
	Size  string `json:"size,omitempty"`
}

// Caption is secondary, de-emphasized text.
type Caption struct {
	Value string `json:"value"`
}

// Badge is a small colored label.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Icon references a named glyph from the client's icon set.
type Icon struct {
	Name  string `json:"name"`
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// Image displays a remote image.
type Image struct {
	Src         string  `json:"src"`
	Alt         string  `json:"alt,omitempty"`
	AspectRatio float64 `json:"aspectRatio,omitempty"`
}

// Spacer absorbs remaining space in a Row or Col.
type Spacer struct{}

func (Card) component()    {}
func (Col) component()     {}
func (Row) component()     {}
func (Text) component()    {}
func (Title) component()   {}
func (Caption) component() {}
func (Badge) component()   {}
func (Icon) component()    {}
func (Image) component()   {}
func (Spacer) component()  {}

func tagged(kind string, v any) ([]byte, error) {
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(inner, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	fields["type"] = json.RawMessage(`"` + kind + `"`)
	return json.Marshal(fields)
}

func (c Card) MarshalJSON() ([]byte, error) {
	type alias Card
	return tagged("Card", alias(c))
}

func (c Col) MarshalJSON() ([]byte, error) {
	type alias Col
	return tagged("Col", alias(c))
}

func (r Row) MarshalJSON() ([]byte, error) {
	type alias Row
	return tagged("Row", alias(r))
}

func (t Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return tagged("Text", alias(t))
}

func (t Title) MarshalJSON() ([]byte, error) {
	type alias Title
	return tagged("Title", alias(t))
}

func (c Caption) MarshalJSON() ([]byte, error) {
	type alias Caption
	return tagged("Caption", alias(c))
}

func (b Badge) MarshalJSON() ([]byte, error) {
	type alias Badge
	return tagged("Badge", alias(b))
}

func (i Icon) MarshalJSON() ([]byte, error) {
	type alias Icon
	return tagged("Icon", alias(i))
}

func (i Image) MarshalJSON() ([]byte, error) {
	type alias Image
	return tagged("Image", alias(i))
}

func (s Spacer) MarshalJSON() ([]byte, error) {
	return []byte(`{"type":"Spacer"}`), nil
}
