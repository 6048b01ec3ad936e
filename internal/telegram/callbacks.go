package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/drag"
	"meal-scheduler/internal/planner"

	"cloud.google.com/go/civil"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Callback actions. Picking a recipe or a placement begins a gesture, a
// cell tap hovers it and drop commits it.
const (
	actionPick   = "pick"
	actionMove   = "move"
	actionDay    = "day"
	actionCell   = "cell"
	actionDrop   = "drop"
	actionCancel = "cancel"
	actionDelete = "del"
	actionNav    = "nav"
	actionList   = "recipes"
)

var errBadCallback = errors.New("malformed callback data")

type callback struct {
	action string
	arg    string
}

func (c callback) id() (int64, error) {
	id, err := strconv.ParseInt(c.arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errBadCallback, c.arg)
	}
	return id, nil
}

// parseCallback splits "action|arg". Slot keys contain the separator
// themselves, so only the first one counts.
func parseCallback(data string) (callback, error) {
	action, arg, _ := strings.Cut(data, "|")
	switch action {
	case actionDrop, actionCancel, actionList:
		return callback{action: action}, nil
	case actionPick, actionMove, actionDay, actionCell, actionDelete, actionNav:
		if arg == "" {
			return callback{}, fmt.Errorf("%w: %q", errBadCallback, data)
		}
		return callback{action: action, arg: arg}, nil
	}
	return callback{}, fmt.Errorf("%w: %q", errBadCallback, data)
}

// screen is what a callback replaces the tapped message with.
type screen struct {
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
	// settle reports the issued mutation once the screen is shown.
	settle bool
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Debug("failed to answer callback", zap.Error(err))
	}

	chatID := query.Message.Chat.ID
	cb, err := parseCallback(query.Data)
	if err != nil {
		b.logger.Warn("ignoring callback", zap.Error(err))
		return
	}

	if cb.action == actionList {
		b.sendRecipes(ctx, chatID, "")
		return
	}

	p := b.plannerFor(ctx, query.From)
	sc, err := b.runCallback(ctx, p, cb)
	if err != nil {
		b.logger.Warn("callback failed", zap.String("data", query.Data), zap.Error(err))
		sc = screen{text: "⚠️ " + tgbotapi.EscapeText(tgbotapi.ModeMarkdown, err.Error())}
	}

	edit := tgbotapi.NewEditMessageText(chatID, query.Message.MessageID, sc.text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = sc.keyboard
	b.send(edit)

	if sc.settle {
		b.reportWhenSettled(chatID, p)
	}
}

func (b *Bot) runCallback(ctx context.Context, p *planner.Planner, cb callback) (screen, error) {
	switch cb.action {
	case actionPick:
		id, err := cb.id()
		if err != nil {
			return screen{}, err
		}
		recipes, err := b.catalog.List(ctx)
		if err != nil {
			return screen{}, fmt.Errorf("could not load recipes: %w", err)
		}
		for _, r := range recipes {
			if r.ID == id {
				p.Dispatch(drag.Abort{})
				p.Dispatch(drag.Begin{Payload: drag.FromRecipe(r)})
				return daysScreen(p), nil
			}
		}
		return screen{}, fmt.Errorf("recipe %d no longer exists", id)

	case actionMove:
		id, err := cb.id()
		if err != nil {
			return screen{}, err
		}
		s, ok := p.Placement(id)
		if !ok {
			return screen{}, planner.ErrNoSuchPlacement
		}
		p.Dispatch(drag.Abort{})
		p.Dispatch(drag.Begin{Payload: drag.FromSchedule(s)})
		return daysScreen(p), nil

	case actionDay:
		d, err := civil.ParseDate(cb.arg)
		if err != nil {
			return screen{}, fmt.Errorf("%w: %v", errBadCallback, err)
		}
		if !p.DragState().Active() {
			return weekScreen(p), nil
		}
		p.Dispatch(drag.Leave{})
		return mealsScreen(p, d), nil

	case actionCell:
		key, err := calendar.ParseSlotKey(cb.arg)
		if err != nil {
			return screen{}, fmt.Errorf("%w: %v", errBadCallback, err)
		}
		out := p.Dispatch(drag.Enter{Target: key})
		if out.State.Phase != drag.Hovering {
			if out.State.Active() {
				kb := daysKeyboard(p.View())
				return screen{text: "⚠️ That meal is not on the current calendar.", keyboard: &kb}, nil
			}
			return weekScreen(p), nil
		}
		return confirmScreen(p, key), nil

	case actionDrop:
		out := p.Dispatch(drag.Drop{})
		if out.Decision == nil {
			return noticeScreen(p), nil
		}
		if !out.Decision.Accepted {
			return noticeScreen(p), nil
		}
		return screen{text: "⏳ Saving...", settle: true}, nil

	case actionCancel:
		p.Dispatch(drag.Abort{})
		return weekScreen(p), nil

	case actionDelete:
		id, err := cb.id()
		if err != nil {
			return screen{}, err
		}
		p.Delete(id)
		return screen{text: "⏳ Removing...", settle: true}, nil

	case actionNav:
		var err error
		switch cb.arg {
		case "next":
			err = p.Next(ctx)
		case "prev":
			err = p.Prev(ctx)
		case "today":
			err = p.Today(ctx)
		case "retry":
			err = p.Retry(ctx)
		default:
			return screen{}, fmt.Errorf("%w: nav %q", errBadCallback, cb.arg)
		}
		if err != nil {
			b.logger.Debug("week load failed", zap.Error(err))
		}
		return noticeScreen(p), nil
	}
	return screen{}, errBadCallback
}

// reportWhenSettled sends the mutation notices and the refreshed week once
// the planner has nothing in flight.
func (b *Bot) reportWhenSettled(chatID int64, p *planner.Planner) {
	b.background.Add(1)
	go func() {
		defer b.background.Done()
		p.Wait()
		b.relayNotices(chatID, p)
		b.sendWeek(chatID, p)
	}()
}

func weekScreen(p *planner.Planner) screen {
	v := p.View()
	kb := weekKeyboard(v)
	return screen{text: formatWeekMarkdown(v), keyboard: &kb}
}

func daysScreen(p *planner.Planner) screen {
	v := p.View()
	kb := daysKeyboard(v)
	return screen{text: fmt.Sprintf("✋ *%s*\nWhich day?", escape(p.DragState().Payload.Title())), keyboard: &kb}
}

func mealsScreen(p *planner.Planner, d civil.Date) screen {
	v := p.View()
	kb := mealsKeyboard(v, d)
	return screen{text: fmt.Sprintf("✋ *%s*\n%s: which meal?", escape(p.DragState().Payload.Title()), formatDay(d)), keyboard: &kb}
}

func confirmScreen(p *planner.Planner, key calendar.SlotKey) screen {
	v := p.View()
	s, _ := v.Slot(key)
	kb := confirmKeyboard()
	text := fmt.Sprintf("✋ *%s*\nDrop on %s %s? (%d scheduled)",
		escape(p.DragState().Payload.Title()), formatDay(key.Date), key.MealType.Title(), len(s.Placements))
	return screen{text: text, keyboard: &kb}
}

// noticeScreen is the week preceded by any queued notices.
func noticeScreen(p *planner.Planner) screen {
	var lines []string
	for _, n := range p.Notices() {
		lines = append(lines, formatNotice(n))
	}
	if len(lines) == 0 {
		return weekScreen(p)
	}
	v := p.View()
	kb := weekKeyboard(v)
	return screen{text: strings.Join(lines, "\n") + "\n\n" + formatWeekMarkdown(v), keyboard: &kb}
}
