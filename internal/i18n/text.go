package i18n

import (
	"encoding/json"
	"strings"
)

// Text is a chat component. Either Text holds a literal, or Translate holds a
// catalog key formatted with With. Extra components are appended in order.
type Text struct {
	Text      string `json:"text,omitempty"`
	Translate string `json:"translate,omitempty"`
	With      []Text `json:"with,omitempty"`
	Color     string `json:"color,omitempty"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Extra     []Text `json:"extra,omitempty"`
}

func Plain(s string) Text { return Text{Text: s} }

func Translatable(key string, with ...Text) Text {
	return Text{Translate: key, With: with}
}

func (t Text) IsZero() bool {
	return t.Text == "" && t.Translate == "" && len(t.Extra) == 0
}

func (t Text) WithColor(c string) Text {
	t.Color = c
	return t
}

// String flattens the component without localization; untranslated keys are
// rendered as the key itself.
func (t Text) String() string {
	var sb strings.Builder
	t.flatten(&sb)
	return sb.String()
}

func (t Text) flatten(sb *strings.Builder) {
	if t.Translate != "" {
		sb.WriteString(t.Translate)
	} else {
		sb.WriteString(t.Text)
	}
	for _, e := range t.Extra {
		e.flatten(sb)
	}
}

// MarshalJSON always emits an object with a text field so empty components
// stay valid on the wire.
func (t Text) MarshalJSON() ([]byte, error) {
	type plain Text
	if t.Text == "" && t.Translate == "" {
		return json.Marshal(struct {
			Text string `json:"text"`
			plain
		}{plain: plain(t)})
	}
	return json.Marshal(plain(t))
}

// UnmarshalJSON accepts both the object form and a bare JSON string.
func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text{Text: s}
		return nil
	}
	type plain Text
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*t = Text(p)
	return nil
}
