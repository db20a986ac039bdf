package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// PageCreator creates pages in a Notion database.
type PageCreator interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
}

// NotionClient is the PageCreator backed by the Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a NotionClient with the provided API token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// CreatePage creates a new page in a Notion database with the given properties.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	return page, nil
}

// NotionSink opens a review page for incidents that need a human.
// Other dispositions are ignored.
type NotionSink struct {
	pages      PageCreator
	databaseID string
}

// NewNotionSink creates a NotionSink writing into databaseID.
func NewNotionSink(pages PageCreator, databaseID string) *NotionSink {
	return &NotionSink{pages: pages, databaseID: databaseID}
}

// Record implements Sink.
func (s *NotionSink) Record(ctx context.Context, inc Incident) error {
	if !inc.Disposition.NeedsReview() {
		return nil
	}
	if _, err := s.pages.CreatePage(ctx, s.databaseID, IncidentToNotionProperties(inc)); err != nil {
		return fmt.Errorf("NotionSink.Record: %s: %w", inc.Transaction.ID, err)
	}
	return nil
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// IncidentToNotionProperties converts an incident to review-page properties.
func IncidentToNotionProperties(inc Incident) notionapi.Properties {
	tx := inc.Transaction
	amount, _ := tx.Amount.Float64()

	props := notionapi.Properties{
		"Transaction": notionapi.TitleProperty{
			Title: richText(fmt.Sprintf("%s %s", tx.Counterparty, tx.Amount.StringFixed(2))),
		},
		"Transaction ID": notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		"Amount": notionapi.NumberProperty{
			Number: amount,
		},
		"Disposition": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(inc.Disposition),
			},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(tx.Status),
			},
		},
		"Screen Suspicious": notionapi.CheckboxProperty{
			Checkbox: inc.Screen.Suspicious,
		},
	}

	// Note
	if note := strings.TrimSpace(tx.Note); note != "" {
		props["Note"] = notionapi.RichTextProperty{
			RichText: richText(note),
		}
	}

	// Screener reasons
	if len(inc.Screen.Reasons) > 0 {
		props["Screen Reasons"] = notionapi.RichTextProperty{
			RichText: richText(strings.Join(inc.Screen.Reasons, "; ")),
		}
	}

	// Verdict
	if v := inc.Verdict; v != nil {
		props["Risk Score"] = notionapi.NumberProperty{
			Number: float64(v.RiskScore),
		}
		props["Risk Reason"] = notionapi.RichTextProperty{
			RichText: richText(v.Reason),
		}
		props["Degraded"] = notionapi.CheckboxProperty{
			Checkbox: v.Degraded,
		}
	}

	// Decided
	if !inc.RecordedAt.IsZero() {
		props["Decided"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(inc.RecordedAt.UTC().Truncate(time.Second))
					return &d
				}(),
			},
		}
	}

	return props
}
