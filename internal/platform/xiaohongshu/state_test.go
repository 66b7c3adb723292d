// internal/platform/xiaohongshu/state_test.go
package xiaohongshu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/quill-cli/api/schemas"
)

func TestDecodeDetailState(t *testing.T) {
	raw := []byte(`{"note":{"noteDetailMap":{"n1":{
		"note":{
			"noteId":"n1","title":"山间徒步","desc":"周末去爬山",
			"user":{"userId":"u1","nickname":"行者"},
			"interactInfo":{"likedCount":"1.2万"},
			"imageList":[{"urlDefault":"https://img/1.jpg"},{"urlDefault":""}]
		},
		"comments":{"list":[
			{"id":"c1","content":"好看","userInfo":{"nickname":"路人"},"likeCount":"3",
			 "subComments":[{"id":"c1r1","content":"同感","userInfo":{"nickname":"甲"},
			   "subComments":[{"id":"deep","content":"dropped"}]}]}
		]}
	}}}}`)

	detail, err := decodeDetailState(raw, "n1")
	require.NoError(t, err)
	assert.Equal(t, "山间徒步", detail.Title)
	assert.Equal(t, "周末去爬山", detail.Body)
	assert.Equal(t, "u1", detail.AuthorID)
	assert.Equal(t, 12000, detail.Likes)
	assert.Equal(t, []string{"https://img/1.jpg"}, detail.MediaRefs)

	require.Len(t, detail.Comments, 1)
	c := detail.Comments[0]
	assert.Equal(t, "好看", c.Body)
	assert.Equal(t, 3, c.Likes)
	require.Len(t, c.Replies, 1, "replies nest one level")
	assert.Empty(t, c.Replies[0].Replies, "deeper nesting is dropped")
}

func TestDecodeDetailStateMissingNote(t *testing.T) {
	raw := []byte(`{"note":{"noteDetailMap":{"other":{}}}}`)
	_, err := decodeDetailState(raw, "n1")
	require.ErrorIs(t, err, schemas.ErrNotFound)
}

func TestDecodeFeedStateRejectsAbsentSection(t *testing.T) {
	_, err := decodeFeedState([]byte(`{"search":{}}`))
	require.Error(t, err, "a page without feed state must fall back to DOM")
}

func TestDecodeMentionState(t *testing.T) {
	raw := []byte(`{"notification":{"notificationMap":{"mentions":{"messageList":[
		{"id":"m1","msgType":"mention","content":" @你 看看这个 ","fromUser":{"nickname":"友人"},"noteId":"n1"},
		{"msgId":"m2","type":"comment/at","content":"回复里@了你","targetNoteId":"n2"}
	]}}}}`)

	mentions, err := decodeMentionState(raw)
	require.NoError(t, err)
	require.Len(t, mentions, 2)
	assert.Equal(t, "m1", mentions[0].ID)
	assert.Equal(t, "mention", mentions[0].Type)
	assert.Equal(t, "友人", mentions[0].AuthorRef)
	assert.Equal(t, "n1", mentions[0].NoteID)

	// Alternate field spellings land in the same place.
	assert.Equal(t, "m2", mentions[1].ID)
	assert.Equal(t, "comment/at", mentions[1].Type)
	assert.Equal(t, "n2", mentions[1].NoteID)
}

func TestDecodeMentionStateRejectsAbsentSection(t *testing.T) {
	_, err := decodeMentionState([]byte(`{"feed":{}}`))
	require.Error(t, err)
}

func TestDecodeProfileState(t *testing.T) {
	raw := []byte(`{"user":{
		"userPageData":{
			"basicInfo":{"nickname":" 行者 ","desc":"走走停停"},
			"interactions":[
				{"type":"follows","count":"120"},
				{"type":"fans","count":"1.5万"},
				{"type":"interaction","count":"888"}
			]
		},
		"notes":[[{"id":"n1","xsecToken":"t1","noteCard":{"displayTitle":"雪山"}}],
		         [{"id":"n2","noteCard":{"displayTitle":"湖边"}}]]
	}}`)

	profile, err := decodeProfileState(raw, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.UserID)
	assert.Equal(t, "行者", profile.Nickname)
	assert.Equal(t, "走走停停", profile.Bio)
	assert.Equal(t, 120, profile.Following)
	assert.Equal(t, 15000, profile.Followers)
	assert.Equal(t, 888, profile.Likes)

	require.Len(t, profile.Notes, 2, "the nested note grid is flattened")
	assert.Equal(t, "n1", profile.Notes[0].ID)
	assert.Equal(t, "t1", profile.Notes[0].AccessToken)
}

func TestDecodeProfileStateMissingUser(t *testing.T) {
	_, err := decodeProfileState([]byte(`{"user":{}}`), "u1")
	require.ErrorIs(t, err, schemas.ErrNotFound)
}

func TestLooseCount(t *testing.T) {
	cases := map[string]int{
		"":      0,
		"12":    12,
		" 340 ": 340,
		"1.2万":  12000,
		"2万":    20000,
		"赞":     0,
	}
	for in, want := range cases {
		assert.Equal(t, want, looseCount(in), "input %q", in)
	}
}

func TestSplitExploreHref(t *testing.T) {
	id, token := splitExploreHref("https://www.xiaohongshu.com/explore/abc?xsec_token=tk&xsec_source=pc_feed")
	assert.Equal(t, "abc", id)
	assert.Equal(t, "tk", token)

	id, token = splitExploreHref("/explore/xyz/")
	assert.Equal(t, "xyz", id)
	assert.Empty(t, token)

	id, _ = splitExploreHref("/user/profile/1")
	assert.Empty(t, id)
}

func TestNormalizeContentClipsToComposerLimits(t *testing.T) {
	c := normalizeContent(schemas.PublishContent{
		Title:      strings.Repeat("题", maxTitleRunes+5),
		Body:       strings.Repeat("文", maxBodyRunes+5),
		MediaPaths: make([]string, maxImages+2),
		Tags:       make([]string, maxTags+2),
	})
	assert.Len(t, []rune(c.Title), maxTitleRunes)
	assert.Len(t, []rune(c.Body), maxBodyRunes)
	assert.Len(t, c.MediaPaths, maxImages)
	assert.Len(t, c.Tags, maxTags)
}

func TestBodyWithTags(t *testing.T) {
	assert.Equal(t, "正文", bodyWithTags("正文", nil))
	assert.Equal(t, "正文\n\n#旅行 #美食", bodyWithTags("正文", []string{"旅行", "#美食"}))
}
