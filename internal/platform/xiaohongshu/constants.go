// internal/platform/xiaohongshu/constants.go
package xiaohongshu

import (
	"fmt"
	"net/url"
)

const PlatformID = "xiaohongshu"

// Surface URLs.
const (
	baseURL         = "https://www.xiaohongshu.com"
	exploreURL      = baseURL + "/explore"
	notificationURL = baseURL + "/notification"
	publishURL      = "https://creator.xiaohongshu.com/publish/publish?source=official"
)

func searchURL(keyword string) string {
	return baseURL + "/search_result?keyword=" + url.QueryEscape(keyword) + "&source=web_search_result_notes"
}

// detailURL carries the per-resource access token the platform attaches to
// feed and search entries. Detail pages opened without it are walled.
func detailURL(id, token string) string {
	u := baseURL + "/explore/" + url.PathEscape(id)
	if token != "" {
		u += "?xsec_token=" + url.QueryEscape(token) + "&xsec_source=pc_feed"
	}
	return u
}

// Selectors. Comma-separated alternatives cover the markup variants the
// platform serves to different cohorts.
const (
	// selLoggedIn appears in the sidebar only for an authenticated session.
	selLoggedIn = ".main-container .user .link-wrapper .channel"

	// selLoginQR is the QR code a human scans to complete login.
	selLoginQR = ".login-container .qrcode-img"

	// selLoginWall is the login dialog the platform overlays on walled pages.
	selLoginWall = ".login-container"

	// selNotificationArea and selUserProfile are readiness markers only; both
	// surfaces are read from the hydration state, not the DOM.
	selNotificationArea = ".main-container"
	selUserProfile      = ".user-page, #userPageContainer"

	selFeedItem     = "section.note-item, a[href*='/explore/']"
	selNoteContent  = ".note-container, #noteContainer"
	selNotBrowsable = ".access-wrapper, .error-wrapper, .not-found-wrapper, .blocked-wrapper"

	selCommentInput  = "textarea[placeholder*='评论'], textarea[placeholder*='说点什么'], [contenteditable='true'][placeholder*='评论'], div[class*='comment'] textarea"
	selCommentSubmit = "button.submit, [class*='comment'] button[class*='submit']"
	selCommentList   = ".comments-container"

	selUploadTabArea  = "div.upload-content"
	selUploadImageTab = "div.creator-tab"
	selUploadInput    = ".upload-input"
	selUploadPreview  = ".img-preview-area .pr"
	selPublishTitle   = "div.d-input input"
	selPublishBody    = "div.ql-editor"
	selPublishSubmit  = ".publish-page-publish-btn button.bg-red, .publish-page-publish-btn button"
	selPublishDone    = ".success-container, .publish-success, .finish-page"
	selPublishedLink  = "a[href*='/explore/']"
)

// profileURL opens a user's public page. It takes the same xsec token feed
// and search entries carry, scoped pc_note.
func profileURL(userID, token string) string {
	u := baseURL + "/user/profile/" + url.PathEscape(userID)
	if token != "" {
		u += "?xsec_token=" + url.QueryEscape(token) + "&xsec_source=pc_note"
	}
	return u
}

// replyTrigger targets a specific comment's reply affordance.
func replyTrigger(commentID string) string {
	return fmt.Sprintf(`[data-comment-id=%q] [class*='reply'], #comment-%s [class*='reply']`, commentID, commentID)
}

// Input limits the platform enforces in its composer UI. Inputs are clipped
// before the workflow starts so a run never trips the composer's own
// length-error state.
const (
	maxTitleRunes   = 20
	maxBodyRunes    = 1000
	maxCommentRunes = 500
	maxImages       = 9
	maxTags         = 10
)
