// internal/platform/xiaohongshu/workflows.go
package xiaohongshu

import (
	"strings"

	"github.com/xkilldash9x/quill-cli/api/schemas"
	"github.com/xkilldash9x/quill-cli/internal/config"
	"github.com/xkilldash9x/quill-cli/internal/extract"
	"github.com/xkilldash9x/quill-cli/internal/workflow"
)

// extractProfile is the platform's extraction table.
func extractProfile() extract.Profile {
	return extract.Profile{
		FeedURL:        exploreURL,
		SearchURL:      searchURL,
		DetailURL:      detailURL,
		MentionsURL:    notificationURL,
		ProfileURL:     profileURL,
		FeedMarker:     selFeedItem,
		SearchMarker:   selFeedItem,
		DetailMarker:   selNoteContent,
		MentionsMarker: selNotificationArea,
		ProfileMarker:  selUserProfile,
		NotFoundMarker: selNotBrowsable,
		StateExpr:      initialStateExpr,
		DecodeFeeds:    decodeFeedState,
		DecodeSearch:   decodeSearchState,
		DecodeDetail:   decodeDetailState,
		DecodeMentions: decodeMentionState,
		DecodeProfile:  decodeProfileState,
		FeedsFromDOM:   feedsFromDOM,
		SearchFromDOM:  searchFromDOM,
		DetailFromDOM:  detailFromDOM,
	}
}

// commentWorkflow drives the post-level composer. An empty pageURL means the
// caller already opened the note; navigating again would re-render the tree.
// The postcondition is attached by the adapter, which read-back-verifies the
// comment text because submission acknowledgment alone is not trusted.
func commentWorkflow(name, pageURL, body string, cfg config.ExtractConfig) workflow.Workflow {
	steps := make([]workflow.Step, 0, 5)
	if pageURL != "" {
		steps = append(steps, workflow.Step{Name: "open note", Action: workflow.ActionNavigate, Input: pageURL, Timeout: cfg.WaitTimeout})
	}
	steps = append(steps,
		workflow.Step{Name: "wait comments area", Action: workflow.ActionWaitVisible, Selector: selCommentList, Timeout: cfg.WaitTimeout, Optional: true},
		workflow.Step{Name: "focus composer", Action: workflow.ActionClick, Selector: selCommentInput},
		workflow.Step{Name: "write comment", Action: workflow.ActionType, Selector: selCommentInput, Input: body},
		workflow.Step{Name: "submit", Action: workflow.ActionClick, Selector: selCommentSubmit},
	)
	return workflow.Workflow{Name: name, Steps: steps}
}

// replyWorkflow targets a specific comment's composer instead of the
// post-level one. It never navigates: the adapter has already opened the note
// to probe the trigger, and a reload could drop the affordance it just found.
func replyWorkflow(commentID, body string, cfg config.ExtractConfig) workflow.Workflow {
	return workflow.Workflow{
		Name: "reply",
		Steps: []workflow.Step{
			{Name: "wait comments area", Action: workflow.ActionWaitVisible, Selector: selCommentList, Timeout: cfg.WaitTimeout},
			{Name: "open reply composer", Action: workflow.ActionClick, Selector: replyTrigger(commentID)},
			{Name: "write reply", Action: workflow.ActionType, Selector: selCommentInput, Input: body},
			{Name: "submit", Action: workflow.ActionClick, Selector: selCommentSubmit},
		},
	}
}

// publishWorkflow drives the creator-studio composer: pick the image tab,
// upload media, fill title and body, submit. Tags ride in the body as
// hashtag text, which the editor linkifies on its own.
func publishWorkflow(content schemas.PublishContent, cfg config.ExtractConfig) workflow.Workflow {
	steps := []workflow.Step{
		{Name: "open creator studio", Action: workflow.ActionNavigate, Input: publishURL, Timeout: cfg.WaitTimeout},
		{Name: "wait composer", Action: workflow.ActionWaitVisible, Selector: selUploadTabArea, Timeout: cfg.WaitTimeout},
		{Name: "pick image tab", Action: workflow.ActionClick, Selector: selUploadImageTab, Optional: true},
	}
	if len(content.MediaPaths) > 0 {
		steps = append(steps,
			workflow.Step{Name: "upload media", Action: workflow.ActionUpload, Selector: selUploadInput, Files: content.MediaPaths},
			workflow.Step{Name: "wait upload", Action: workflow.ActionWaitVisible, Selector: selUploadPreview, Timeout: cfg.WaitTimeout},
		)
	}
	steps = append(steps,
		workflow.Step{Name: "fill title", Action: workflow.ActionType, Selector: selPublishTitle, Input: content.Title},
		workflow.Step{Name: "fill body", Action: workflow.ActionType, Selector: selPublishBody, Input: bodyWithTags(content.Body, content.Tags)},
		workflow.Step{Name: "submit", Action: workflow.ActionClick, Selector: selPublishSubmit},
		workflow.Step{Name: "wait confirmation", Action: workflow.ActionWaitVisible, Selector: selPublishDone, Timeout: cfg.WaitTimeout},
	)
	return workflow.Workflow{Name: "publish", Steps: steps}
}

// normalizeContent clips the input to the composer's enforced limits so the
// workflow never trips the editor's own length-error state.
func normalizeContent(c schemas.PublishContent) schemas.PublishContent {
	c.Title = truncateRunes(strings.TrimSpace(c.Title), maxTitleRunes)
	c.Body = truncateRunes(strings.TrimSpace(c.Body), maxBodyRunes)
	if len(c.MediaPaths) > maxImages {
		c.MediaPaths = c.MediaPaths[:maxImages]
	}
	if len(c.Tags) > maxTags {
		c.Tags = c.Tags[:maxTags]
	}
	return c
}

func bodyWithTags(body string, tags []string) string {
	if len(tags) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\n")
	for i, tag := range tags {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('#')
		b.WriteString(strings.TrimPrefix(tag, "#"))
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
