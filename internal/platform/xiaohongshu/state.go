// internal/platform/xiaohongshu/state.go
// Decoders for the window.__INITIAL_STATE__ blob the platform embeds for
// hydration. The blob wraps values in reactive cells ({value} or {_value}),
// which the serialization expression unwraps before handing JSON to Go.
package xiaohongshu

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// initialStateExpr serializes the whole hydration state, unwrapping reactive
// cells so the decoders see plain objects. Yields "" on pages without state.
const initialStateExpr = `(() => {
	const s = window.__INITIAL_STATE__;
	if (!s) return "";
	try {
		return JSON.stringify(s, (k, v) => {
			if (v && typeof v === "object") {
				if (v.value !== undefined) return v.value;
				if (v._value !== undefined) return v._value;
			}
			return v;
		});
	} catch (e) {
		return "";
	}
})()`

// rawFeed is one entry of feed.feeds / search.feeds.
type rawFeed struct {
	ID        string `json:"id"`
	XsecToken string `json:"xsecToken"`
	NoteCard  struct {
		DisplayTitle string `json:"displayTitle"`
		Desc         string `json:"desc"`
		User         struct {
			Nickname string `json:"nickname"`
		} `json:"user"`
		Cover struct {
			URLDefault string `json:"urlDefault"`
		} `json:"cover"`
	} `json:"noteCard"`
}

// rawNoteEntry is one entry of note.noteDetailMap.
type rawNoteEntry struct {
	Note struct {
		NoteID string `json:"noteId"`
		Title  string `json:"title"`
		Desc   string `json:"desc"`
		User   struct {
			UserID   string `json:"userId"`
			Nickname string `json:"nickname"`
		} `json:"user"`
		InteractInfo struct {
			LikedCount string `json:"likedCount"`
		} `json:"interactInfo"`
		ImageList []struct {
			URLDefault string `json:"urlDefault"`
		} `json:"imageList"`
	} `json:"note"`
	Comments struct {
		List []rawComment `json:"list"`
	} `json:"comments"`
}

// rawMention is one entry of notification.notificationMap.mentions. The
// platform has shipped several field spellings for the same data, so the
// decoder accepts all of them.
type rawMention struct {
	ID       string `json:"id"`
	MsgID    string `json:"msgId"`
	Type     string `json:"type"`
	MsgType  string `json:"msgType"`
	Content  string `json:"content"`
	FromUser struct {
		Nickname string `json:"nickname"`
	} `json:"fromUser"`
	NoteID       string `json:"noteId"`
	TargetNoteID string `json:"targetNoteId"`
}

// rawUserPage is user.userPageData on a profile page. Interaction counts
// arrive as a typed list, not named fields.
type rawUserPage struct {
	BasicInfo struct {
		Nickname string `json:"nickname"`
		Desc     string `json:"desc"`
	} `json:"basicInfo"`
	Interactions []struct {
		Type  string `json:"type"`
		Count string `json:"count"`
	} `json:"interactions"`
}

type rawComment struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	UserInfo struct {
		Nickname string `json:"nickname"`
	} `json:"userInfo"`
	LikeCount   string       `json:"likeCount"`
	SubComments []rawComment `json:"subComments"`
}

func decodeFeedState(raw []byte) ([]schemas.FeedItem, error) {
	var state struct {
		Feed struct {
			Feeds []rawFeed `json:"feeds"`
		} `json:"feed"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode feed state: %w", err)
	}
	if state.Feed.Feeds == nil {
		return nil, fmt.Errorf("state carries no feed entries")
	}
	items := make([]schemas.FeedItem, 0, len(state.Feed.Feeds))
	for _, f := range state.Feed.Feeds {
		items = append(items, feedItemFromRaw(f))
	}
	return items, nil
}

func decodeSearchState(raw []byte) ([]schemas.SearchResult, error) {
	var state struct {
		Search struct {
			Feeds []rawFeed `json:"feeds"`
		} `json:"search"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode search state: %w", err)
	}
	if state.Search.Feeds == nil {
		return nil, fmt.Errorf("state carries no search entries")
	}
	results := make([]schemas.SearchResult, 0, len(state.Search.Feeds))
	for _, f := range state.Search.Feeds {
		item := feedItemFromRaw(f)
		results = append(results, schemas.SearchResult(item))
	}
	return results, nil
}

func decodeDetailState(raw []byte, id string) (*schemas.PostDetail, error) {
	var state struct {
		Note struct {
			NoteDetailMap map[string]rawNoteEntry `json:"noteDetailMap"`
		} `json:"note"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode note state: %w", err)
	}
	entry, ok := state.Note.NoteDetailMap[id]
	if !ok {
		return nil, fmt.Errorf("%w: note %s absent from detail map", schemas.ErrNotFound, id)
	}

	detail := &schemas.PostDetail{
		ID:        id,
		Title:     strings.TrimSpace(entry.Note.Title),
		Body:      strings.TrimSpace(entry.Note.Desc),
		AuthorRef: entry.Note.User.Nickname,
		AuthorID:  entry.Note.User.UserID,
		Likes:     looseCount(entry.Note.InteractInfo.LikedCount),
	}
	for _, img := range entry.Note.ImageList {
		if img.URLDefault != "" {
			detail.MediaRefs = append(detail.MediaRefs, img.URLDefault)
		}
	}
	for _, rc := range entry.Comments.List {
		detail.Comments = append(detail.Comments, commentFromRaw(rc, true))
	}
	return detail, nil
}

func decodeMentionState(raw []byte) ([]schemas.Mention, error) {
	var state struct {
		Notification struct {
			NotificationMap struct {
				Mentions struct {
					MessageList []rawMention `json:"messageList"`
				} `json:"mentions"`
			} `json:"notificationMap"`
		} `json:"notification"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode mention state: %w", err)
	}
	list := state.Notification.NotificationMap.Mentions.MessageList
	if list == nil {
		return nil, fmt.Errorf("state carries no mention entries")
	}
	mentions := make([]schemas.Mention, 0, len(list))
	for _, m := range list {
		mentions = append(mentions, mentionFromRaw(m))
	}
	return mentions, nil
}

// decodeProfileState reads user.userPageData for the identity card and
// user.notes for the pinned note grid, which arrives as column-major nested
// arrays and is flattened here.
func decodeProfileState(raw []byte, userID string) (*schemas.UserProfile, error) {
	var state struct {
		User struct {
			UserPageData *rawUserPage `json:"userPageData"`
			Notes        [][]rawFeed  `json:"notes"`
		} `json:"user"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode user state: %w", err)
	}
	pd := state.User.UserPageData
	if pd == nil {
		return nil, fmt.Errorf("%w: user %s absent from page state", schemas.ErrNotFound, userID)
	}

	profile := &schemas.UserProfile{
		UserID:   userID,
		Nickname: strings.TrimSpace(pd.BasicInfo.Nickname),
		Bio:      strings.TrimSpace(pd.BasicInfo.Desc),
	}
	for _, in := range pd.Interactions {
		switch in.Type {
		case "follows":
			profile.Following = looseCount(in.Count)
		case "fans":
			profile.Followers = looseCount(in.Count)
		case "interaction":
			profile.Likes = looseCount(in.Count)
		}
	}
	for _, column := range state.User.Notes {
		for _, f := range column {
			profile.Notes = append(profile.Notes, feedItemFromRaw(f))
		}
	}
	return profile, nil
}

func mentionFromRaw(m rawMention) schemas.Mention {
	out := schemas.Mention{
		ID:        m.ID,
		Type:      m.MsgType,
		Body:      strings.TrimSpace(m.Content),
		AuthorRef: m.FromUser.Nickname,
		NoteID:    m.NoteID,
	}
	if out.ID == "" {
		out.ID = m.MsgID
	}
	if out.Type == "" {
		out.Type = m.Type
	}
	if out.NoteID == "" {
		out.NoteID = m.TargetNoteID
	}
	return out
}

func feedItemFromRaw(f rawFeed) schemas.FeedItem {
	return schemas.FeedItem{
		ID:          f.ID,
		Title:       strings.TrimSpace(f.NoteCard.DisplayTitle),
		AuthorRef:   f.NoteCard.User.Nickname,
		Excerpt:     strings.TrimSpace(f.NoteCard.Desc),
		AccessToken: f.XsecToken,
		MediaRefs:   nonEmpty(f.NoteCard.Cover.URLDefault),
	}
}

// commentFromRaw converts one comment node; replies nest one level only, so
// sub-comments of sub-comments are dropped.
func commentFromRaw(rc rawComment, withReplies bool) schemas.Comment {
	c := schemas.Comment{
		ID:        rc.ID,
		Body:      strings.TrimSpace(rc.Content),
		AuthorRef: rc.UserInfo.Nickname,
		Likes:     looseCount(rc.LikeCount),
	}
	if withReplies {
		for _, sub := range rc.SubComments {
			c.Replies = append(c.Replies, commentFromRaw(sub, false))
		}
	}
	return c
}

// looseCount parses the platform's display counts, which arrive as strings
// and may carry suffixes like "1.2万". Unparseable counts collapse to 0.
func looseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if i := strings.IndexRune(s, '万'); i >= 0 {
		var f float64
		if _, err := fmt.Sscanf(s[:i], "%f", &f); err == nil {
			return int(f * 10000)
		}
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0
	}
	return n
}

func nonEmpty(ss ...string) []string {
	var out []string
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
