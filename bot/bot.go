package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"lucremais-task/services"
	"lucremais-task/utils"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
)

const (
	callbackInvite  = "invite"
	callbackBalance = "balance"
)

type Bot struct {
	Instance   *telego.Bot
	Accounts   *services.AccountService
	Referrals  *services.ReferralService
	VIP        *services.VIPService
	Clock      *services.Clock
	Rules      services.Rules
	Username   string
	WebAppURL  string
	VIPGroupID int64
}

func NewBot(token string) (*telego.Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return tgBot, nil
}

// Send delivers a plain text message; used by the notification dispatcher.
func (b *Bot) Send(ctx context.Context, userID int64, text string) error {
	_, err := b.Instance.SendMessage(ctx, tu.Message(tu.ID(userID), text))
	return err
}

// IsVIP reports membership of the VIP group.
func (b *Bot) IsVIP(ctx context.Context, userID int64) (bool, error) {
	if b.VIPGroupID == 0 {
		return false, nil
	}
	member, err := b.Instance.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(b.VIPGroupID),
		UserID: userID,
	})
	if err != nil {
		return false, fmt.Errorf("get chat member %d: %w", userID, err)
	}
	return isVIPStatus(member.MemberStatus()), nil
}

func isVIPStatus(status string) bool {
	switch status {
	case "creator", "administrator", "member":
		return true
	}
	return false
}

// referralSignal is the throttle bucket for bot-originated referrals.
// Telegram exposes no network origin, so the bucket is per referrer per day.
func referralSignal(indicatorID int64, day string) string {
	return fmt.Sprintf("tg:%d:%s", indicatorID, day)
}

// Start consumes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("create bot handler: %w", err)
	}

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.handleStart(ctx, update.Message)
		return nil
	}, th.CommandEqual("start"))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.handleInvite(ctx, update.CallbackQuery)
		return nil
	}, th.CallbackDataEqual(callbackInvite))

	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.handleBalance(ctx, update.CallbackQuery)
		return nil
	}, th.CallbackDataEqual(callbackBalance))

	log.Printf("[BOT] ✅ @%s polling for updates", b.Username)
	return handler.Start()
}

func (b *Bot) handleStart(ctx *th.Context, message *telego.Message) {
	if message == nil || message.From == nil {
		return
	}
	from := message.From
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)

	if _, err := b.Accounts.GetOrCreate(ctx.Context(), from.ID, name); err != nil {
		log.Printf("[BOT] ❌ GetOrCreate %d: %v", from.ID, err)
		b.reply(ctx, from.ID, "❌ Erro ao registrar sua conta. Tente novamente.")
		return
	}

	if parts := strings.Fields(message.Text); len(parts) > 1 {
		if indicatorID, ok := utils.ParseReferrer(parts[1]); ok {
			b.registerReferral(ctx, from.ID, indicatorID)
		}
	}

	if b.VIP != nil {
		if _, err := b.VIP.Sync(ctx.Context(), from.ID); err != nil {
			log.Printf("[BOT] ⚠️ VIP sync %d: %v", from.ID, err)
		}
	}

	rows := [][]telego.InlineKeyboardButton{}
	if b.WebAppURL != "" {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🚀 Abrir tarefas").WithWebApp(&telego.WebAppInfo{URL: b.WebAppURL}),
		))
	}
	rows = append(rows,
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🤝 Convidar amigos").WithCallbackData(callbackInvite),
			tu.InlineKeyboardButton("💰 Meu saldo").WithCallbackData(callbackBalance),
		),
	)

	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
		tu.ID(message.Chat.ID),
		fmt.Sprintf("Olá, %s! 👋\n\nComplete tarefas diárias e convide amigos para ganhar pontos.", from.FirstName),
	).WithReplyMarkup(tu.InlineKeyboard(rows...)))
}

func (b *Bot) registerReferral(ctx *th.Context, indicatedID, indicatorID int64) {
	signal := referralSignal(indicatorID, b.Clock.Today())
	_, err := b.Referrals.RegisterReferral(ctx.Context(), indicatedID, indicatorID, signal)
	if err == nil {
		return
	}
	if services.KindOf(err) == services.KindInternal {
		log.Printf("[BOT] ❌ referral %d <- %d: %v", indicatedID, indicatorID, err)
		return
	}
	log.Printf("[BOT] referral %d <- %d rejected: %v", indicatedID, indicatorID, err)
	if text, ok := referralRejectionText(err); ok {
		b.reply(ctx, indicatedID, text)
	}
}

// referralRejectionText is the reply for a rejected /start referral.
// Self-referrals are ignored silently.
func referralRejectionText(err error) (string, bool) {
	switch {
	case errors.Is(err, services.ErrAlreadyIndicated):
		return "ℹ️ Você já foi indicado anteriormente.", true
	case errors.Is(err, services.ErrThrottleExceeded):
		return "🚫 Limite de indicações por IP atingido.", true
	}
	return "", false
}

func (b *Bot) handleInvite(ctx *th.Context, callback *telego.CallbackQuery) {
	if callback == nil {
		return
	}
	defer func() { _ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID)) }()

	userID := callback.From.ID
	link, err := utils.ReferralLink(b.Username, userID)
	if err != nil {
		log.Printf("[BOT] ❌ referral link for %d: %v", userID, err)
		b.reply(ctx, userID, "❌ Link de convite indisponível no momento.")
		return
	}
	caption := fmt.Sprintf("🤝 Convide amigos e ganhe %d pontos quando eles concluírem a primeira tarefa!\n\n%s", b.Rules.IndicatorBonus, link)

	png, err := utils.ReferralQR(b.Username, userID, 256)
	if err != nil {
		log.Printf("[BOT] ⚠️ qr for %d: %v", userID, err)
		b.reply(ctx, userID, caption)
		return
	}
	_, err = ctx.Bot().SendPhoto(ctx.Context(), tu.Photo(
		tu.ID(userID),
		tu.File(tu.NameReader(bytes.NewReader(png), "convite.png")),
	).WithCaption(caption))
	if err != nil {
		log.Printf("[BOT] ❌ send qr to %d: %v", userID, err)
		b.reply(ctx, userID, caption)
	}
}

func (b *Bot) handleBalance(ctx *th.Context, callback *telego.CallbackQuery) {
	if callback == nil {
		return
	}
	defer func() { _ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID)) }()

	userID := callback.From.ID
	acc, err := b.Accounts.GetAccount(ctx.Context(), userID)
	if err != nil {
		b.reply(ctx, userID, "❌ Conta não encontrada. Envie /start.")
		return
	}
	threshold := b.Rules.PayoutThreshold(acc.VIP)
	tier := "Padrão"
	if acc.VIP {
		tier = "VIP ⭐"
	}
	b.reply(ctx, userID, fmt.Sprintf(
		"💰 Saldo: %d pontos (%s)\n✅ Tarefas: %d\n🤝 Indicações: %d\n\nPlano: %s. Saque a partir de %d pontos.",
		acc.Points, utils.FormatBRL(b.Rules.PayoutValue(acc.Points)), acc.TasksCompleted, acc.Referrals, tier, threshold,
	))
}

func (b *Bot) reply(ctx *th.Context, chatID int64, text string) {
	_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(chatID), text))
}
