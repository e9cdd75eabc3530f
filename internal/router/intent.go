package router

import (
	"strings"
)

// Intent — распознанное намерение игрока.
type Intent string

const (
	IntentStart           Intent = "start"
	IntentCast            Intent = "cast"
	IntentShowInventory   Intent = "show_inventory"
	IntentSellAll         Intent = "sell_all"
	IntentOpenShop        Intent = "open_shop"
	IntentBuyRod          Intent = "buy_rod"
	IntentShowLeaderboard Intent = "show_leaderboard"
	IntentShowQuests      Intent = "show_quests"
	IntentShowLocations   Intent = "show_locations"
	IntentSetLocation     Intent = "set_location"
	IntentProfile         Intent = "profile"
	IntentDaily           Intent = "daily"
	IntentPayment         Intent = "payment"
	IntentUnknown         Intent = "unknown"
)

// Префиксы данных inline-кнопок.
const (
	BuyPrefix      = "buy:"
	LocationPrefix = "loc:"
	ActionPrefix   = "act:"
)

// Надписи кнопок постоянного меню. Нажатие такой кнопки приходит
// обычным текстом, поэтому надписи входят в словарь.
const (
	LabelCast        = "🎣 Забросить"
	LabelInventory   = "🎒 Инвентарь"
	LabelSell        = "💰 Продать всё"
	LabelShop        = "🛒 Магазин"
	LabelLocations   = "🗺 Локации"
	LabelQuests      = "📜 Квесты"
	LabelLeaderboard = "🏆 Топ"
	LabelProfile     = "👤 Профиль"
	LabelDaily       = "🎁 Бонус"
)

// MenuLayout — раскладка постоянного меню по рядам.
var MenuLayout = [][]string{
	{LabelCast, LabelInventory},
	{LabelSell, LabelShop},
	{LabelLocations, LabelQuests},
	{LabelLeaderboard, LabelProfile, LabelDaily},
}

var labels = map[string]Intent{
	LabelCast:        IntentCast,
	LabelInventory:   IntentShowInventory,
	LabelSell:        IntentSellAll,
	LabelShop:        IntentOpenShop,
	LabelLocations:   IntentShowLocations,
	LabelQuests:      IntentShowQuests,
	LabelLeaderboard: IntentShowLeaderboard,
	LabelProfile:     IntentProfile,
	LabelDaily:       IntentDaily,
}

// Команды после префикса (! . /), в нижнем регистре.
var commands = map[string]Intent{
	"start":       IntentStart,
	"help":        IntentStart,
	"старт":       IntentStart,
	"помощь":      IntentStart,
	"cast":        IntentCast,
	"fish":        IntentCast,
	"забросить":   IntentCast,
	"рыбачить":    IntentCast,
	"inventory":   IntentShowInventory,
	"inv":         IntentShowInventory,
	"инвентарь":   IntentShowInventory,
	"sell":        IntentSellAll,
	"продать":     IntentSellAll,
	"shop":        IntentOpenShop,
	"магазин":     IntentOpenShop,
	"купить":      IntentOpenShop,
	"top":         IntentShowLeaderboard,
	"leaderboard": IntentShowLeaderboard,
	"топ":         IntentShowLeaderboard,
	"quests":      IntentShowQuests,
	"квесты":      IntentShowQuests,
	"locations":   IntentShowLocations,
	"локации":     IntentShowLocations,
	"loc":         IntentSetLocation,
	"локация":     IntentSetLocation,
	"profile":     IntentProfile,
	"me":          IntentProfile,
	"профиль":     IntentProfile,
	"daily":       IntentDaily,
	"бонус":       IntentDaily,
}

// Command — намерение и его аргумент (ID удочки или локации).
type Command struct {
	Intent Intent
	Arg    string
}

// Classify распознаёт намерение события. Только точное совпадение
// и префиксы: неизвестное — IntentUnknown.
func Classify(ev Event) Command {
	if ev.Payment != nil {
		return Command{Intent: IntentPayment}
	}
	if ev.IsButton() {
		return classifyButton(ev.ButtonData)
	}
	return classifyText(ev.Text)
}

func classifyButton(data string) Command {
	switch {
	case strings.HasPrefix(data, BuyPrefix):
		if id := strings.TrimPrefix(data, BuyPrefix); id != "" {
			return Command{Intent: IntentBuyRod, Arg: id}
		}
	case strings.HasPrefix(data, LocationPrefix):
		if id := strings.TrimPrefix(data, LocationPrefix); id != "" {
			return Command{Intent: IntentSetLocation, Arg: id}
		}
	case strings.HasPrefix(data, ActionPrefix):
		// кнопки-действия повторяют команды, но покупку через них не сделать
		if in, ok := commands[strings.TrimPrefix(data, ActionPrefix)]; ok && in != IntentSetLocation {
			return Command{Intent: in}
		}
	}
	return Command{Intent: IntentUnknown}
}

func classifyText(text string) Command {
	text = strings.TrimSpace(text)
	if in, ok := labels[text]; ok {
		return Command{Intent: in}
	}

	name, args, ok := parseCommand(text)
	if !ok {
		return Command{Intent: IntentUnknown}
	}
	in, ok := commands[name]
	if !ok {
		return Command{Intent: IntentUnknown}
	}
	if in == IntentSetLocation {
		if len(args) == 0 {
			// без аргумента — показываем список
			return Command{Intent: IntentShowLocations}
		}
		return Command{Intent: IntentSetLocation, Arg: strings.ToLower(args[0])}
	}
	return Command{Intent: in}
}

var commandPrefixes = []string{"!", ".", "/"}

// parseCommand разбирает "!команда арг1 арг2" на команду и аргументы.
// Суффикс "@имя_бота" у команды в группах отбрасывается.
func parseCommand(text string) (string, []string, bool) {
	hasPrefix := false
	for _, prefix := range commandPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	name := strings.ToLower(parts[0])
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return name, parts[1:], true
}
