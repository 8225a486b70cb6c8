package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"livemenu/internal/domain"
	"livemenu/internal/events"
	"livemenu/internal/models"
)

// telegram limits document uploads to 50 MB
const maxDocumentSize = 50 << 20

var ErrDocumentTooLarge = errors.New("document exceeds telegram upload limit")

// Notifier forwards menu and export events to the admin chats.
type Notifier struct {
	tg      domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewNotifier(tg domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Notifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "notifier").Logger()
	return &Notifier{tg: tg, chatIDs: chatIDs, logger: &l}
}

// Subscribe wires the notifier to the bus. Per-page progress is not forwarded.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	for _, t := range []string{
		events.EventMenuUpdated,
		events.EventPricesAdjusted,
		events.EventArchiveCreated,
		events.EventMenuRestored,
		events.EventExportFinished,
	} {
		bus.Subscribe(t, n.Handle)
	}
}

func (n *Notifier) Handle(e *events.Event) error {
	text, err := FormatEvent(e)
	if err != nil || text == "" {
		return err
	}
	return n.Broadcast(text)
}

// Broadcast sends text to every admin chat and returns the first error.
func (n *Notifier) Broadcast(text string) error {
	var firstErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := n.tg.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send notification")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendDocument uploads a finished artifact to every admin chat.
func (n *Notifier) SendDocument(name string, data []byte, caption string) error {
	if len(data) > maxDocumentSize {
		return fmt.Errorf("%w: %s", ErrDocumentTooLarge, name)
	}
	var firstErr error
	for _, chatID := range n.chatIDs {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
		doc.Caption = caption
		if _, err := n.tg.Send(doc); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("file", name).Msg("send document")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// FormatEvent renders the admin message for an event, empty for ignored events.
func FormatEvent(e *events.Event) (string, error) {
	switch e.Type {
	case events.EventMenuUpdated:
		var p events.MenuEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		msg := fmt.Sprintf("📝 Menu %s", p.Action)
		if p.Item != "" {
			msg += ": " + p.Item
		}
		if p.Section != "" {
			msg += fmt.Sprintf(" (%s)", p.Section)
		}
		return msg, nil

	case events.EventPricesAdjusted:
		var p events.MenuEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("💰 Prices updated by %+g%% across %d items. Previous menu archived.", p.Percent, p.Items), nil

	case events.EventArchiveCreated:
		var p events.ArchiveEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("🗄 Menu archived (%d items): %s", p.Items, p.Note), nil

	case events.EventMenuRestored:
		var p events.MenuEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("♻️ Menu restored from archive %s", p.ArchiveID), nil

	case events.EventExportFinished:
		var p events.ExportEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return formatExport(p), nil
	}
	return "", nil
}

func formatExport(p events.ExportEventPayload) string {
	var b strings.Builder
	switch p.Status {
	case models.JobSucceeded:
		fmt.Fprintf(&b, "✅ Export %s ready", p.Kind)
	case models.JobPartial:
		fmt.Fprintf(&b, "⚠️ Export %s finished with %d failed pages: %s", p.Kind, len(p.Failed), strings.Join(p.Failed, ", "))
	default:
		fmt.Fprintf(&b, "❌ Export %s failed", p.Kind)
		if p.Error != "" {
			b.WriteString(": " + p.Error)
		}
	}
	if len(p.Artifacts) > 0 {
		b.WriteString("\n" + strings.Join(p.Artifacts, "\n"))
	}
	return b.String()
}
