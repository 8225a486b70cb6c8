package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livemenu/internal/export"
	"livemenu/internal/models"
	"livemenu/internal/pricing"
)

type fakeMenu struct {
	percent  float64
	scope    pricing.Scope
	restored string
	archives []models.ArchiveInfo
}

func (f *fakeMenu) AdjustPrices(_ context.Context, percent float64, scope pricing.Scope) (models.ArchiveInfo, error) {
	f.percent, f.scope = percent, scope
	return models.ArchiveInfo{ID: "arch-new"}, nil
}

func (f *fakeMenu) ListArchives(context.Context) ([]models.ArchiveInfo, error) {
	return f.archives, nil
}

func (f *fakeMenu) Restore(_ context.Context, id string) (models.ArchiveInfo, error) {
	if id == "missing" {
		return models.ArchiveInfo{}, errors.New("archive not found")
	}
	f.restored = id
	return models.ArchiveInfo{ID: "arch-before-restore"}, nil
}

type fakeExports struct {
	queued    []export.Request
	archiveID string
}

func (f *fakeExports) Plan(context.Context) (models.Plan, error) {
	return models.Plan{models.CoverPage{}, models.BackCoverPage{}}, nil
}

func (f *fakeExports) Enqueue(_ context.Context, req export.Request, archiveID string) (*models.ExportJob, error) {
	f.queued = append(f.queued, req)
	f.archiveID = archiveID
	return &models.ExportJob{ID: "job-1", Kind: string(req.Kind)}, nil
}

func (f *fakeExports) PriceList(context.Context) (export.Artifact, error) {
	return export.Artifact{Name: "LiveBar_Price_List.xlsx", Data: []byte("PK")}, nil
}

func command(chatID int64, text string) tgbotapi.Update {
	length := len(text)
	for i, r := range text {
		if r == ' ' {
			length = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}}
}

func callback(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func lastText(t *testing.T, tg *mockTelegramSender) string {
	t.Helper()
	require.NotEmpty(t, tg.sent)
	msg, ok := tg.sent[len(tg.sent)-1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	return msg.Text
}

func newAdminFixture() (*AdminBot, *mockTelegramSender, *fakeMenu, *fakeExports) {
	tg := &mockTelegramSender{}
	menu := &fakeMenu{}
	exports := &fakeExports{}
	return NewAdminBot(tg, menu, exports, []int64{42}, nil), tg, menu, exports
}

func TestAdminBotRejectsStrangers(t *testing.T) {
	b, tg, menu, _ := newAdminFixture()

	b.HandleUpdate(context.Background(), command(7, "/prices 50"))
	assert.Contains(t, lastText(t, tg), "only answers the bar admins")
	assert.Zero(t, menu.percent)

	b.HandleUpdate(context.Background(), callback(7, "restore:arch-1"))
	assert.Empty(t, menu.restored)
}

func TestAdminBotPrices(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		text    string
		reply   string
		percent float64
		section models.SectionKey
		cat     *int
	}{
		{name: "whole menu", text: "/prices 10", reply: "arch-new", percent: 10},
		{name: "percent sign", text: "/prices -5%", reply: "arch-new", percent: -5},
		{name: "category", text: "/prices 7.5 food 1", reply: "arch-new", percent: 7.5, section: models.SectionFood, cat: new(int)},
		{name: "usage", text: "/prices", reply: "Usage"},
		{name: "not a number", text: "/prices ten", reply: "must be a number"},
		{name: "bad section", text: "/prices 5 desserts", reply: "bad section"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, tg, menu, _ := newAdminFixture()
			b.HandleUpdate(ctx, command(42, tt.text))
			assert.Contains(t, lastText(t, tg), tt.reply)
			assert.Equal(t, tt.percent, menu.percent)
			assert.Equal(t, tt.section, menu.scope.Section)
			if tt.cat != nil {
				require.NotNil(t, menu.scope.Category)
				assert.Equal(t, 1, *menu.scope.Category)
			}
		})
	}
}

func TestAdminBotExports(t *testing.T) {
	ctx := context.Background()
	b, tg, _, exports := newAdminFixture()

	b.HandleUpdate(ctx, command(42, "/export"))
	kb, ok := tg.sent[0].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "export:document", *kb.InlineKeyboard[0][0].CallbackData)

	b.HandleUpdate(ctx, callback(42, "export:document"))
	assert.Contains(t, lastText(t, tg), "job-1")

	b.HandleUpdate(ctx, command(42, "/page cover 15"))
	require.Len(t, exports.queued, 2)
	page := exports.queued[1]
	assert.Equal(t, export.KindImage, page.Kind)
	assert.Equal(t, "cover", page.Page)
	require.NotNil(t, page.PromoPercent)
	assert.Equal(t, 15.0, *page.PromoPercent)

	b.HandleUpdate(ctx, command(42, "/plan"))
	assert.Contains(t, lastText(t, tg), "2 pages")
	assert.Contains(t, lastText(t, tg), "2. back-cover")

	b.HandleUpdate(ctx, command(42, "/pricelist"))
	doc, ok := tg.sent[len(tg.sent)-1].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), doc.ChatID)
}

func TestAdminBotArchives(t *testing.T) {
	ctx := context.Background()
	b, tg, menu, exports := newAdminFixture()

	b.HandleUpdate(ctx, command(42, "/archives"))
	assert.Equal(t, "No archives yet.", lastText(t, tg))

	menu.archives = []models.ArchiveInfo{
		{ID: "a2", Note: "Price adjustment: +10%", Items: 120, ArchivedAt: time.Now()},
		{ID: "a1", Note: "Manual archive", Items: 118, ArchivedAt: time.Now().Add(-time.Hour)},
	}
	b.HandleUpdate(ctx, command(42, "/archives"))
	msg := tg.sent[len(tg.sent)-1].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Price adjustment: +10%")
	kb := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "restore:a2", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "pdf:a1", *kb.InlineKeyboard[1][1].CallbackData)

	b.HandleUpdate(ctx, callback(42, "restore:a1"))
	assert.Equal(t, "a1", menu.restored)
	assert.Contains(t, lastText(t, tg), "arch-before-restore")

	b.HandleUpdate(ctx, callback(42, "restore:missing"))
	assert.Contains(t, lastText(t, tg), "restore failed")

	b.HandleUpdate(ctx, callback(42, "pdf:a2"))
	assert.Equal(t, "a2", exports.archiveID)
	assert.Equal(t, export.KindDocument, exports.queued[len(exports.queued)-1].Kind)
}

func TestAdminBotStartStopsOnClose(t *testing.T) {
	b, tg, _, _ := newAdminFixture()
	updates := make(chan tgbotapi.Update, 1)
	updates <- command(42, "/help")
	close(updates)

	done := make(chan struct{})
	go func() {
		b.Start(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after the channel closed")
	}
	assert.Contains(t, lastText(t, tg), "/pricelist")
}
