package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(w io.Writer, msg string) {
	success.Fprintln(w, msg)
}

func printError(w io.Writer, msg string) {
	danger.Fprintln(w, msg)
}

func printInfo(w io.Writer, msg string) {
	neutral.Fprintln(w, msg)
}

func printLeaderboard(w io.Writer, top []economy.Player) {
	accent.Fprintln(w, "Топ рыбаков")
	if len(top) == 0 {
		printInfo(w, "Игроков пока нет.")
		return
	}
	for i, p := range top {
		name := p.Username
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%3d. %-20s %10d  (id %d)\n", i+1, name, p.Coins, p.ID)
	}
}

func printUser(w io.Writer, p *economy.Player, items []economy.InventoryEntry, quests []economy.QuestView, purchases []economy.PurchaseRecord, loc *time.Location) {
	accent.Fprintf(w, "Игрок %d %s\n", p.ID, p.Username)
	fmt.Fprintf(w, "  Баланс:   %s\n", common.FormatBalance(p.Coins))
	fmt.Fprintf(w, "  Уровень:  %d (xp %d)\n", p.Level, p.XP)
	fmt.Fprintf(w, "  Удочка:   %s\n", p.Rod)
	fmt.Fprintf(w, "  Локация:  %s\n", p.Location)
	daily := "никогда"
	if p.LastDaily != nil {
		daily = p.LastDaily.Format(time.DateOnly)
	}
	fmt.Fprintf(w, "  Бонус:    %s\n", daily)
	fmt.Fprintf(w, "  С нами с: %s\n", common.FormatDateTime(p.CreatedAt, loc))

	accent.Fprintln(w, "Инвентарь")
	if len(items) == 0 {
		printInfo(w, "  пусто")
	}
	for _, it := range items {
		fmt.Fprintf(w, "  %-20s %d\n", it.Item, it.Amount)
	}

	accent.Fprintln(w, "Квесты")
	for _, q := range quests {
		mark := " "
		if q.Completed {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %-12s %d/%d\n", mark, q.Quest.ID, q.Progress, q.Quest.Target)
	}

	accent.Fprintln(w, "Покупки")
	if len(purchases) == 0 {
		printInfo(w, "  нет")
	}
	for _, pr := range purchases {
		fmt.Fprintf(w, "  %s  %-10s %d\n", common.FormatDateTime(pr.CreatedAt, loc), pr.Item, pr.Price)
	}
}
