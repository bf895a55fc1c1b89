package domain

// EmojiParams represents the rendering parameters planned for one emoji.
// The JSON shape matches the renderer's /generate request body.
type EmojiParams struct {
	Text      string       `json:"text"`
	Layout    *EmojiLayout `json:"layout,omitempty"`
	Style     EmojiStyle   `json:"style"`
	Motion    *EmojiMotion `json:"motion,omitempty"`
	Shortcode string       `json:"shortcode"`
}

// EmojiLayout controls canvas mode and text alignment
type EmojiLayout struct {
	Mode      string `json:"mode,omitempty"`      // square or banner
	Alignment string `json:"alignment,omitempty"` // left, center, right
}

// EmojiStyle controls font and colors
type EmojiStyle struct {
	FontID       string `json:"fontId"`
	TextColor    string `json:"textColor"`
	OutlineColor string `json:"outlineColor,omitempty"`
	OutlineWidth int    `json:"outlineWidth,omitempty"`
	Shadow       *bool  `json:"shadow,omitempty"`
}

// EmojiMotion controls animation
type EmojiMotion struct {
	Type      string `json:"type"`
	Intensity string `json:"intensity,omitempty"`
}

// HasMotion reports whether the params carry an effective animation
func (p *EmojiParams) HasMotion() bool {
	return p.Motion != nil && p.Motion.Type != "" && p.Motion.Type != "none"
}
