// ABOUTME: URL recognition for each embed provider and the canonical embed URLs they expand to.
// ABOUTME: Also exports the default trusted-source patterns the sanitizer enforces.

package embed

import (
	"regexp"
	"strings"
)

// providerSpec describes how a provider's URLs look and where its player lives.
type providerSpec struct {
	provider Provider
	link     *regexp.Regexp // public watch/permalink URLs, group 1 = id
	player   *regexp.Regexp // iframe src URLs, group 1 = id
	embedURL func(id string) string
}

var providerSpecs = []providerSpec{
	{
		provider: YouTube,
		link:     regexp.MustCompile(`(?i)^https?://(?:www\.|m\.)?(?:youtube\.com/(?:watch\?(?:[^#\s]*&)?v=|shorts/|live/)|youtu\.be/)([A-Za-z0-9_-]{11})(?:[?&#][^\s]*)?$`),
		player:   regexp.MustCompile(`(?i)^(?:https?:)?//(?:www\.)?youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]{11})`),
		embedURL: func(id string) string { return "https://www.youtube.com/embed/" + id },
	},
	{
		provider: ThreeSpeak,
		link:     regexp.MustCompile(`(?i)^https?://(?:www\.)?3speak\.(?:tv|online|co)/watch\?v=([A-Za-z0-9.-]+/[A-Za-z0-9_-]+)$`),
		player:   regexp.MustCompile(`(?i)^(?:https?:)?//(?:www\.)?3speak\.(?:tv|online|co)/embed\?v=([A-Za-z0-9.-]+/[A-Za-z0-9_-]+)`),
		embedURL: func(id string) string { return "https://3speak.tv/embed?v=" + id },
	},
	{
		provider: Vimeo,
		link:     regexp.MustCompile(`(?i)^https?://(?:www\.)?vimeo\.com/(?:video/)?([0-9]+)/?$`),
		player:   regexp.MustCompile(`(?i)^(?:https?:)?//player\.vimeo\.com/video/([0-9]+)`),
		embedURL: func(id string) string { return "https://player.vimeo.com/video/" + id },
	},
	{
		provider: Odysee,
		link:     regexp.MustCompile(`(?i)^https?://(?:www\.)?odysee\.com/(@[A-Za-z0-9_.-]+(?::[0-9a-f]+)?/[A-Za-z0-9_.-]+(?::[0-9a-f]+)?)$`),
		player:   regexp.MustCompile(`(?i)^(?:https?:)?//(?:www\.)?odysee\.com/\$/embed/([A-Za-z0-9_.:@/-]+?)(?:\?.*)?$`),
		embedURL: func(id string) string { return "https://odysee.com/$/embed/" + id },
	},
	{
		provider: Instagram,
		link:     regexp.MustCompile(`(?i)^https?://(?:www\.)?instagram\.com/(?:p|reel|tv)/([A-Za-z0-9_-]+)/?(?:\?[^\s]*)?$`),
		player:   regexp.MustCompile(`(?i)^(?:https?:)?//(?:www\.)?instagram\.com/(?:p|reel)/([A-Za-z0-9_-]+)/embed`),
		embedURL: func(id string) string { return "https://www.instagram.com/p/" + id + "/embed" },
	},
}

// directVideoPattern matches a direct link to a video file served over https.
var directVideoPattern = regexp.MustCompile(`(?i)^https://[^\s<>"'()\[\]]+\.(?:mp4|webm|mov|m4v)(?:\?[^\s<>"'()\[\]]*)?$`)

// DefaultTrustedSources are the iframe src patterns the sanitizer keeps.
// They match exactly the URLs produced by the expander.
var DefaultTrustedSources = []string{
	`^https://www\.youtube\.com/embed/[A-Za-z0-9_-]{11}$`,
	`^https://3speak\.tv/embed\?v=[A-Za-z0-9.-]+/[A-Za-z0-9_-]+$`,
	`^https://player\.vimeo\.com/video/[0-9]+$`,
	`^https://odysee\.com/\$/embed/[A-Za-z0-9_.:@/-]+$`,
	`^https://www\.instagram\.com/p/[A-Za-z0-9_-]+/embed$`,
}

// DefaultTrustedVideoSources are the <video> src patterns the sanitizer keeps.
var DefaultTrustedVideoSources = []string{
	`(?i)^https://[^\s<>"'()\[\]]+\.(?:mp4|webm|mov|m4v)(?:\?[^\s<>"'()\[\]]*)?$`,
}

// ClassifyLink recognises a public watch or permalink URL.
func ClassifyLink(rawURL string) (Token, bool) {
	for _, spec := range providerSpecs {
		if m := spec.link.FindStringSubmatch(rawURL); m != nil {
			return checked(Token{Provider: spec.provider, ID: m[1]})
		}
	}
	if directVideoPattern.MatchString(rawURL) {
		return checked(Token{Provider: GenericVideo, ID: EncodeVideoID(rawURL)})
	}
	return Token{}, false
}

// ClassifyPlayer recognises an iframe src pointing at a provider's player.
func ClassifyPlayer(src string) (Token, bool) {
	src = strings.TrimSpace(src)
	for _, spec := range providerSpecs {
		if m := spec.player.FindStringSubmatch(src); m != nil {
			return checked(Token{Provider: spec.provider, ID: m[1]})
		}
	}
	return Token{}, false
}

// EmbedURL returns the player URL for a valid token.
func EmbedURL(t Token) (string, bool) {
	if !t.Valid() {
		return "", false
	}
	if t.Provider == GenericVideo {
		return DecodeVideoID(t.ID)
	}
	for _, spec := range providerSpecs {
		if spec.provider == t.Provider {
			return spec.embedURL(t.ID), true
		}
	}
	return "", false
}

func checked(t Token) (Token, bool) {
	if !t.Valid() {
		return Token{}, false
	}
	return t, true
}
