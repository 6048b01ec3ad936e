package telegram

import (
	"fmt"
	"strings"
	"time"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"

	"cloud.google.com/go/civil"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatDay(d civil.Date) string {
	return d.In(time.UTC).Format("Mon 02 Jan")
}

func formatWeekMarkdown(v planner.View) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Week of %s to %s*\n", v.WeekStart, v.WeekEnd))

	if v.Unavailable {
		sb.WriteString("\n⚠️ _Could not load this week._ Tap Retry.\n")
		return sb.String()
	}

	for _, d := range v.Dates {
		sb.WriteString(fmt.Sprintf("\n*%s*\n", formatDay(d)))
		empty := true
		for _, m := range v.MealTypes {
			s, _ := v.Slot(calendar.NewSlotKey(d, m))
			if len(s.Placements) == 0 {
				continue
			}
			empty = false
			titles := make([]string, 0, len(s.Placements))
			for _, pl := range s.Placements {
				titles = append(titles, escape(pl.Title()))
			}
			sb.WriteString(fmt.Sprintf("• %s: %s\n", m.Title(), strings.Join(titles, ", ")))
		}
		if empty {
			sb.WriteString("_Nothing planned_\n")
		}
	}

	if n := len(v.Pending); n > 0 {
		sb.WriteString(fmt.Sprintf("\n⏳ %d change(s) saving\n", n))
	}
	return sb.String()
}

func formatNotice(n planner.Notice) string {
	switch n.Level {
	case planner.LevelSuccess:
		return "✅ " + escape(n.Message)
	case planner.LevelError:
		return "❌ " + escape(n.Message)
	default:
		return "⚠️ " + escape(n.Message)
	}
}

func formatMetricsMarkdown(summary []metrics.DailySummary, health metrics.SysHealth, sessions int) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Schedule Changes*\n")
	if len(summary) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range summary {
		sb.WriteString(fmt.Sprintf("• *%s* %s: %d (%d failed, avg %.0fms)\n", d.Date, d.Operation, d.Total, d.Failed, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Sessions: %d\n", sessions))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))
	return sb.String()
}

func recipeKeyboard(recipes []recipe.Recipe) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(recipes))
	for _, r := range recipes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.Title, fmt.Sprintf("%s|%d", actionPick, r.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// weekKeyboard offers navigation plus a move and a delete button for every
// placement in view.
func weekKeyboard(v planner.View) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Prev", actionNav+"|prev"),
			tgbotapi.NewInlineKeyboardButtonData("Today", actionNav+"|today"),
			tgbotapi.NewInlineKeyboardButtonData("Next ▶️", actionNav+"|next"),
		),
	}
	if v.Unavailable {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Retry", actionNav+"|retry"),
		))
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Add recipe", actionList),
	))

	seen := make(map[int64]bool)
	for _, s := range v.Slots {
		for _, pl := range s.Placements {
			if seen[pl.ID] {
				continue
			}
			seen[pl.ID] = true
			label := fmt.Sprintf("✋ %s (%s %s)", pl.Title(), s.Key.Date.In(time.UTC).Format("Mon"), s.Key.MealType.Title())
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s|%d", actionMove, pl.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s|%d", actionDelete, pl.ID)),
			))
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func daysKeyboard(v planner.View) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range v.Dates {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(formatDay(d), actionDay+"|"+d.String()))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", actionCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mealsKeyboard(v planner.View, d civil.Date) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, m := range v.MealTypes {
		key := calendar.NewSlotKey(d, m)
		s, _ := v.Slot(key)
		label := m.Title()
		if s.Full {
			label += " (full)"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, actionCell+"|"+key.String()),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", actionCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Drop here", actionDrop),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", actionCancel),
		),
	)
}
