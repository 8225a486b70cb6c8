package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"livemenu/internal/domain"
	"livemenu/internal/export"
	"livemenu/internal/models"
	"livemenu/internal/pricing"
)

const archivesShown = 8

// MenuController is the part of the menu service the admin bot drives.
type MenuController interface {
	AdjustPrices(ctx context.Context, percent float64, scope pricing.Scope) (models.ArchiveInfo, error)
	ListArchives(ctx context.Context) ([]models.ArchiveInfo, error)
	Restore(ctx context.Context, id string) (models.ArchiveInfo, error)
}

// ExportController is the part of the export service the admin bot drives.
type ExportController interface {
	Plan(ctx context.Context) (models.Plan, error)
	Enqueue(ctx context.Context, req export.Request, archiveID string) (*models.ExportJob, error)
	PriceList(ctx context.Context) (export.Artifact, error)
}

// AdminBot answers menu commands from the admin chats. Finished exports
// come back through the Notifier.
type AdminBot struct {
	tg      domain.TelegramSender
	menu    MenuController
	exports ExportController
	admins  map[int64]struct{}
	logger  *zerolog.Logger
}

func NewAdminBot(tg domain.TelegramSender, menu MenuController, exports ExportController, admins []int64, logger *zerolog.Logger) *AdminBot {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "admin_bot").Logger()
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &AdminBot{tg: tg, menu: menu, exports: exports, admins: set, logger: &l}
}

// Start handles updates until ctx is done or the channel is closed.
func (b *AdminBot) Start(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *AdminBot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *AdminBot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	if !b.isAdmin(chatID) {
		b.logger.Warn().Int64("chat_id", chatID).Str("command", msg.Command()).Msg("command from unknown chat")
		b.reply(chatID, "⛔ This bot only answers the bar admins.")
		return
	}

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "plan":
		b.sendPlan(ctx, chatID)
	case "export":
		b.sendExportKeyboard(chatID)
	case "page":
		b.exportPage(ctx, chatID, args)
	case "prices":
		b.adjustPrices(ctx, chatID, args)
	case "archives":
		b.sendArchives(ctx, chatID)
	case "pricelist":
		b.sendPriceList(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. /help lists what I can do.")
	}
}

const helpText = `Commands:
/plan - pages of the printed menu
/export - render the menu (PDF, images, printer)
/page <key> [promo%] - render one page as an image
/prices <percent> [section [category]] - change prices, the menu is archived first
/archives - recent archives with restore and PDF buttons
/pricelist - XLSX price list`

// callback data: export:<kind>, restore:<id>, pdf:<id>
func (b *AdminBot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.tg.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback")
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	if !b.isAdmin(chatID) {
		return
	}

	action, arg, _ := strings.Cut(cq.Data, ":")
	switch action {
	case "export":
		b.enqueue(ctx, chatID, export.Request{Kind: export.Kind(arg)}, "")
	case "pdf":
		b.enqueue(ctx, chatID, export.Request{Kind: export.KindDocument}, arg)
	case "restore":
		info, err := b.menu.Restore(ctx, arg)
		if err != nil {
			b.replyErr(chatID, "restore failed", err)
			return
		}
		b.reply(chatID, fmt.Sprintf("♻️ Restored. The replaced menu is archive %s.", info.ID))
	}
}

func (b *AdminBot) sendPlan(ctx context.Context, chatID int64) {
	p, err := b.exports.Plan(ctx)
	if err != nil {
		b.replyErr(chatID, "plan failed", err)
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📄 %d pages\n", len(p))
	for _, s := range p.Summaries() {
		fmt.Fprintf(&sb, "%d. %s", s.Number, s.Key)
		if s.Items > 0 {
			fmt.Fprintf(&sb, " (%d items)", s.Items)
		}
		sb.WriteString("\n")
	}
	b.reply(chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *AdminBot) sendExportKeyboard(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "What should I render?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📕 PDF", "export:"+string(export.KindDocument)),
			tgbotapi.NewInlineKeyboardButtonData("🖼 Images", "export:"+string(export.KindImageSet)),
		),
	)
	b.send(chatID, msg)
}

func (b *AdminBot) exportPage(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, "Usage: /page <key> [promo%]. /plan lists the keys.")
		return
	}
	req := export.Request{Kind: export.KindImage, Page: args[0]}
	if len(args) > 1 {
		promo, err := parsePercent(args[1])
		if err != nil {
			b.reply(chatID, "Promo must be a number, for example 15.")
			return
		}
		req.PromoPercent = &promo
	}
	b.enqueue(ctx, chatID, req, "")
}

func (b *AdminBot) enqueue(ctx context.Context, chatID int64, req export.Request, archiveID string) {
	job, err := b.exports.Enqueue(ctx, req, archiveID)
	if err != nil {
		b.replyErr(chatID, "export not queued", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("⏳ Export %s queued (%s). The file will follow here.", job.ID, job.Kind))
}

func (b *AdminBot) adjustPrices(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.reply(chatID, "Usage: /prices <percent> [section [category]], for example /prices 10 or /prices -5 food 0")
		return
	}
	percent, err := parsePercent(args[0])
	if err != nil {
		b.reply(chatID, "Percent must be a number, for example 10 or -5.")
		return
	}

	var scope pricing.Scope
	if len(args) > 1 {
		key, err := models.ParseSectionKey(args[1])
		if err != nil {
			b.replyErr(chatID, "bad section", err)
			return
		}
		scope.Section = key
	}
	if len(args) > 2 {
		category, err := strconv.Atoi(args[2])
		if err != nil || category < 0 {
			b.reply(chatID, "Category must be a category index, for example 0.")
			return
		}
		scope.Category = &category
	}

	info, err := b.menu.AdjustPrices(ctx, percent, scope)
	if err != nil {
		b.replyErr(chatID, "prices not changed", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("💰 Done. Previous menu archived as %s.", info.ID))
}

func (b *AdminBot) sendArchives(ctx context.Context, chatID int64) {
	archives, err := b.menu.ListArchives(ctx)
	if err != nil {
		b.replyErr(chatID, "archives unavailable", err)
		return
	}
	if len(archives) == 0 {
		b.reply(chatID, "No archives yet.")
		return
	}
	if len(archives) > archivesShown {
		archives = archives[:archivesShown]
	}

	var sb strings.Builder
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(archives))
	for i, a := range archives {
		fmt.Fprintf(&sb, "%d. %s, %d items: %s\n", i+1, a.ArchivedAt.Local().Format("02 Jan 15:04"), a.Items, a.Note)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("♻️ %d", i+1), "restore:"+a.ID),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("📕 %d", i+1), "pdf:"+a.ID),
		))
	}
	msg := tgbotapi.NewMessage(chatID, strings.TrimRight(sb.String(), "\n"))
	msg.ReplyMarkup = tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
	b.send(chatID, msg)
}

func (b *AdminBot) sendPriceList(ctx context.Context, chatID int64) {
	a, err := b.exports.PriceList(ctx)
	if err != nil {
		b.replyErr(chatID, "price list failed", err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: a.Name, Bytes: a.Data})
	doc.Caption = "Price list " + time.Now().Format("02 Jan 2006")
	b.send(chatID, doc)
}

func (b *AdminBot) isAdmin(chatID int64) bool {
	_, ok := b.admins[chatID]
	return ok
}

func (b *AdminBot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	b.send(chatID, msg)
}

func (b *AdminBot) replyErr(chatID int64, what string, err error) {
	b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg(what)
	text := "❌ " + what
	if !errors.Is(err, context.Canceled) {
		text += ": " + err.Error()
	}
	b.reply(chatID, text)
}

func (b *AdminBot) send(chatID int64, c tgbotapi.Chattable) {
	if _, err := b.tg.Send(c); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send reply")
	}
}

func parsePercent(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
}
