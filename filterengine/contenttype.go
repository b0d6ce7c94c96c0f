package filterengine

import "strings"

// ContentType is a bitmask describing the kind of content a request is
// loading. Masks combine with bitwise or.
type ContentType uint32

const (
	ContentTypeOther ContentType = 1 << iota
	ContentTypeScript
	ContentTypeImage
	ContentTypeStylesheet
	ContentTypeObject
	ContentTypeSubdocument
	ContentTypeDocument
	ContentTypeWebsocket
	ContentTypeWebRTC
	ContentTypePing
	ContentTypeXMLHTTPRequest
	ContentTypeMedia
	ContentTypeFont
	ContentTypePopup
	ContentTypeGenericblock
	ContentTypeElemhide
	ContentTypeGenerichide
)

var contentTypeNames = map[ContentType]string{
	ContentTypeOther:          "OTHER",
	ContentTypeScript:         "SCRIPT",
	ContentTypeImage:          "IMAGE",
	ContentTypeStylesheet:     "STYLESHEET",
	ContentTypeObject:         "OBJECT",
	ContentTypeSubdocument:    "SUBDOCUMENT",
	ContentTypeDocument:       "DOCUMENT",
	ContentTypeWebsocket:      "WEBSOCKET",
	ContentTypeWebRTC:         "WEBRTC",
	ContentTypePing:           "PING",
	ContentTypeXMLHTTPRequest: "XMLHTTPREQUEST",
	ContentTypeMedia:          "MEDIA",
	ContentTypeFont:           "FONT",
	ContentTypePopup:          "POPUP",
	ContentTypeGenericblock:   "GENERICBLOCK",
	ContentTypeElemhide:       "ELEMHIDE",
	ContentTypeGenerichide:    "GENERICHIDE",
}

func (c ContentType) String() string {
	if name, ok := contentTypeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseContentType maps a case-insensitive name like "script" back to
// its mask.
func ParseContentType(name string) (ContentType, bool) {
	want := strings.ToUpper(name)
	for mask, n := range contentTypeNames {
		if n == want {
			return mask, true
		}
	}
	return 0, false
}
