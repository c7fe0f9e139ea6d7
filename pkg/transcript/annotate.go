package transcript

import "github.com/jxzhangjhu/guidance/pkg/models"

// Annotate copies each chat choice's message content into its Text field so
// chat and plain completion responses can be read the same way.
func Annotate(resp *models.Response) {
	if resp == nil {
		return
	}
	for i := range resp.Choices {
		if msg := resp.Choices[i].Message; msg != nil {
			resp.Choices[i].Text = msg.Content
		}
	}
}
