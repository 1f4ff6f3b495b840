package wizard

import "telegram-sticker-cloner/internal/domain/ports/adapter"

// ReplyButton is either a wizard button or a plain URL button.
type ReplyButton struct {
	Label  string
	Button Button
	URL    string
}

// Reply is one outbound message. Text is already translated.
type Reply struct {
	Text     string
	Rows     [][]ReplyButton
	Document *adapter.Document
}

// Transition is the result of one step. When Done is set the session ends
// and Next is ignored.
type Transition struct {
	Next    State
	Done    bool
	Replies []Reply
}

// InlineRows converts reply buttons into adapter buttons with encoded data.
func (r Reply) InlineRows() [][]adapter.InlineButton {
	if len(r.Rows) == 0 {
		return nil
	}
	rows := make([][]adapter.InlineButton, 0, len(r.Rows))
	for _, row := range r.Rows {
		out := make([]adapter.InlineButton, 0, len(row))
		for _, b := range row {
			ib := adapter.InlineButton{Text: b.Label, URL: b.URL}
			if b.URL == "" {
				ib.Data = EncodeButton(b.Button)
			}
			out = append(out, ib)
		}
		rows = append(rows, out)
	}
	return rows
}

func msg(text string, rows ...[]ReplyButton) Reply {
	return Reply{Text: text, Rows: rows}
}

func btn(label string, a Action, value string) ReplyButton {
	return ReplyButton{Label: label, Button: Button{Action: a, Value: value}}
}

func stay(s State, replies ...Reply) Transition { return Transition{Next: s, Replies: replies} }

func next(s State, replies ...Reply) Transition { return Transition{Next: s, Replies: replies} }

func done(replies ...Reply) Transition { return Transition{Done: true, Replies: replies} }
