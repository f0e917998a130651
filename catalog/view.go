package catalog

import "time"

// MaxCardTags is how many tags a card shows.
const MaxCardTags = 3

// AnimationStep is the entrance animation delay between consecutive cards.
const AnimationStep = 50 * time.Millisecond

// RevealThreshold is the fraction of the viewport height a card's top edge
// must be above for HandleScroll to reveal it.
const RevealThreshold = 0.75

// Message is a titled notice shown instead of cards.
type Message struct {
	Title string
	Body  string
}

// Messages shown by the controller.
var (
	MsgNoFavorites = Message{Title: "No Favorites Yet", Body: "Click the star on any tool to add it to your favorites."}
	MsgNoTools     = Message{Title: "No Tools Found", Body: "Try a different search term."}
	MsgLoadError   = Message{Title: "Error Loading Tools", Body: "Please try again later."}
)

// Card is one rendered tool entry.
type Card struct {
	Name        string
	URL         string
	Description string
	// Tags holds at most MaxCardTags tags.
	Tags      []string
	Favorited bool

	// Animate is set on the first render after load only.
	Animate        bool
	AnimationDelay time.Duration

	// SuppressAnimation marks a card just favorited while a search was active.
	SuppressAnimation bool
}

// View is a complete render: either cards or a message, never both.
type View struct {
	Cards   []Card
	Message *Message
}

// Empty reports whether the view shows a message instead of cards.
func (v View) Empty() bool { return v.Message != nil }

// StarIcon names the icon on the favorites toggle.
type StarIcon int

const (
	StarRegular StarIcon = iota
	StarSolid
)

func (s StarIcon) String() string {
	if s == StarSolid {
		return "fa-solid fa-star"
	}
	return "fa-regular fa-star"
}

// ToggleState is the visual state of the favorites-view toggle.
type ToggleState struct {
	Active bool
	Icon   StarIcon
	Label  string
}

func toggleState(favoritesView bool) ToggleState {
	if favoritesView {
		return ToggleState{Active: true, Icon: StarSolid, Label: " Show All"}
	}
	return ToggleState{Active: false, Icon: StarRegular, Label: " Show Favorites"}
}
