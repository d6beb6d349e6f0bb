package utils

import (
	"net/url"
)

// ShareLinks holds prebuilt social sharing URLs for one page.
type ShareLinks struct {
	Twitter  string `json:"twitter"`
	Facebook string `json:"facebook"`
	LinkedIn string `json:"linkedin"`
	Reddit   string `json:"reddit"`
	Email    string `json:"email"`
}

func BuildShareLinks(pageURL, title string) ShareLinks {
	u := url.QueryEscape(pageURL)
	t := url.QueryEscape(title)
	return ShareLinks{
		Twitter:  "https://twitter.com/intent/tweet?url=" + u + "&text=" + t,
		Facebook: "https://www.facebook.com/sharer/sharer.php?u=" + u,
		LinkedIn: "https://www.linkedin.com/sharing/share-offsite/?url=" + u,
		Reddit:   "https://www.reddit.com/submit?url=" + u + "&title=" + t,
		Email:    "mailto:?subject=" + url.PathEscape(title) + "&body=" + url.PathEscape(pageURL),
	}
}
