package router

import (
	"fmt"
	"strings"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/features/catalog"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

func renderStart(name string) Response {
	greet := "🎣 Добро пожаловать на рыбалку!"
	if name != "" {
		greet = fmt.Sprintf("🎣 Добро пожаловать на рыбалку, %s!", name)
	}
	return Response{
		Text: greet + "\n\n" +
			"Забрасывай удочку, продавай улов и покупай снасти получше.\n" +
			"Команды: /cast /inventory /sell /shop /locations /quests /top /profile /daily",
		Menu: true,
	}
}

func renderUnknown() Response {
	return Response{
		Text: "Не понял команду 🤷 Нажми кнопку меню или /help.",
		Menu: true,
	}
}

func (r *Router) renderCast(res *economy.CastResult) Response {
	loc := r.engine.Catalog().LocationOrDefault(res.Catch.Location)

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎣 %s: поймано %s ×%d\n", loc.Name, res.Catch.Fish, res.Catch.Quantity)
	fmt.Fprintf(&sb, "Примерная стоимость: %s\n", common.FormatBalance(res.Value))
	fmt.Fprintf(&sb, "⭐ +%d опыта", res.XPGained)
	if res.LevelUp {
		fmt.Fprintf(&sb, "\n🆙 Новый уровень: %d!", res.Level)
	}
	writeQuests(&sb, res.Completed)

	return Response{
		Text: sb.String(),
		Buttons: [][]Button{{
			{Text: "🎣 Ещё раз", Data: ActionPrefix + "cast"},
			{Text: "💰 Продать всё", Data: ActionPrefix + "sell"},
		}},
	}
}

func (r *Router) renderInventory(items []economy.InventoryEntry) Response {
	if len(items) == 0 {
		return Response{Text: "🎒 Инвентарь пуст. Самое время забросить удочку!"}
	}

	cat := r.engine.Catalog()
	var (
		sb    strings.Builder
		total int64
	)
	sb.WriteString("🎒 Инвентарь:\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "• %s — %d шт.\n", it.Item, it.Amount)
		total += cat.PriceOf(it.Item) * it.Amount
	}
	fmt.Fprintf(&sb, "\nПримерная стоимость: %s", common.FormatBalance(total))

	return Response{
		Text:    sb.String(),
		Buttons: [][]Button{{{Text: "💰 Продать всё", Data: ActionPrefix + "sell"}}},
	}
}

func renderSale(res *economy.SaleResult) Response {
	if len(res.Items) == 0 {
		return Response{Text: "🎒 Продавать нечего. Сначала порыбачь!"}
	}

	var sb strings.Builder
	sb.WriteString("💰 Продано:\n")
	for _, it := range res.Items {
		fmt.Fprintf(&sb, "• %s ×%d по %d = %d\n", it.Item, it.Amount, it.Price, it.Total)
	}
	fmt.Fprintf(&sb, "\nИтого: %s\n", common.FormatCoinsAmount(res.Total))
	fmt.Fprintf(&sb, "Баланс: %s", common.FormatBalance(res.Balance))
	writeQuests(&sb, res.Completed)

	return Response{Text: sb.String()}
}

func (r *Router) renderShop(p *economy.Player) Response {
	var sb strings.Builder
	sb.WriteString("🛒 Магазин удочек\n")
	fmt.Fprintf(&sb, "Баланс: %s\n\n", common.FormatBalance(p.Coins))

	var buttons [][]Button
	for _, rod := range r.engine.Catalog().Rods {
		mark := ""
		if rod.ID == p.Rod {
			mark = " ✅"
		}
		fmt.Fprintf(&sb, "• %s — %s, улов +%d%s\n", rod.Name, common.FormatBalance(rod.Price), rod.Bonus, mark)
		buttons = append(buttons, []Button{{
			Text: fmt.Sprintf("%s — %d", rod.Name, rod.Price),
			Data: BuyPrefix + rod.ID,
		}})
	}

	return Response{Text: strings.TrimRight(sb.String(), "\n"), Buttons: buttons}
}

func renderPurchase(res *economy.PurchaseResult) Response {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Куплена удочка «%s» за %s\n", res.Rod.Name, common.FormatBalance(res.Rod.Price))
	fmt.Fprintf(&sb, "Баланс: %s", common.FormatBalance(res.Balance))
	writeQuests(&sb, res.Completed)

	return Response{
		Text: sb.String(),
		Ack:  &Ack{Text: "Куплено: " + res.Rod.Name},
	}
}

func renderLeaderboard(top []economy.Player) Response {
	if len(top) == 0 {
		return Response{Text: "🏆 Пока никто не рыбачил"}
	}

	var sb strings.Builder
	sb.WriteString("🏆 Топ рыбаков:\n")
	for i, p := range top {
		fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, DisplayName(p), common.FormatBalance(p.Coins))
	}
	return Response{Text: strings.TrimRight(sb.String(), "\n")}
}

func renderQuests(views []economy.QuestView) Response {
	if len(views) == 0 {
		return Response{Text: "📜 Квестов пока нет"}
	}

	var sb strings.Builder
	sb.WriteString("📜 Квесты:\n")
	for _, v := range views {
		if v.Completed {
			fmt.Fprintf(&sb, "✅ %s (%d/%d)\n", v.Quest.Description, v.Quest.Target, v.Quest.Target)
			continue
		}
		fmt.Fprintf(&sb, "▫️ %s (%d/%d), награда %s\n",
			v.Quest.Description, v.Progress, v.Quest.Target, common.FormatBalance(v.Quest.Reward))
	}
	return Response{Text: strings.TrimRight(sb.String(), "\n")}
}

func (r *Router) renderLocations(p *economy.Player) Response {
	var sb strings.Builder
	sb.WriteString("🗺 Локации:\n")

	var buttons [][]Button
	for _, loc := range r.engine.Catalog().Locations {
		mark := ""
		if loc.ID == p.Location {
			mark = " 📍"
		}
		fish := make([]string, 0, len(loc.Fish))
		for _, f := range loc.Fish {
			fish = append(fish, f.Name)
		}
		fmt.Fprintf(&sb, "• %s%s: %s\n", loc.Name, mark, strings.Join(fish, ", "))
		buttons = append(buttons, []Button{{Text: loc.Name, Data: LocationPrefix + loc.ID}})
	}

	return Response{Text: strings.TrimRight(sb.String(), "\n"), Buttons: buttons}
}

func renderLocationSet(loc catalog.Location) Response {
	return Response{
		Text: fmt.Sprintf("📍 Теперь ты рыбачишь здесь: %s", loc.Name),
		Ack:  &Ack{Text: "Локация: " + loc.Name},
	}
}

func (r *Router) renderProfile(p *economy.Player) Response {
	cat := r.engine.Catalog()
	rodName := p.Rod
	if rod, ok := cat.Rod(p.Rod); ok {
		rodName = rod.Name
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n", DisplayName(*p))
	fmt.Fprintf(&sb, "Монеты: %s\n", common.FormatBalance(p.Coins))
	fmt.Fprintf(&sb, "Уровень: %d (%d опыта)\n", p.Level, p.XP)
	fmt.Fprintf(&sb, "Удочка: %s\n", rodName)
	fmt.Fprintf(&sb, "Локация: %s\n", cat.LocationOrDefault(p.Location).Name)
	fmt.Fprintf(&sb, "В игре с %s", common.FormatDateTime(p.CreatedAt, r.engine.Timezone()))
	return Response{Text: sb.String()}
}

func renderDaily(res *economy.DailyResult) Response {
	return Response{Text: fmt.Sprintf("🎁 Ежедневный бонус: %s\nБаланс: %s",
		common.FormatCoinsAmount(res.Bonus), common.FormatBalance(res.Balance))}
}

func renderPayment(reward, balance int64) Response {
	return Response{Text: fmt.Sprintf("💎 Спасибо за покупку! %s\nБаланс: %s",
		common.FormatCoinsAmount(reward), common.FormatBalance(balance))}
}

func writeQuests(sb *strings.Builder, done []economy.QuestReward) {
	for _, q := range done {
		fmt.Fprintf(sb, "\n🏅 Квест «%s» выполнен: %s", q.Quest.Description, common.FormatCoinsAmount(q.Reward))
	}
}

// DisplayName — имя игрока для списков; без имени показываем ID.
func DisplayName(p economy.Player) string {
	if p.Username != "" {
		return p.Username
	}
	return fmt.Sprintf("Рыбак #%d", p.ID)
}
