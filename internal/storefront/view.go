package storefront

// Button is an inline keyboard button whose payload is a wizard token.
// The transport layer encodes the token when it renders the keyboard.
type Button struct {
	Label string
	Token Token
}

// Document is a file delivered to the buyer, used for multi-item receipts.
type Document struct {
	Name    string
	Caption string
	Content []byte
}

// View is the transport-agnostic result of a wizard step: text to show,
// an inline keyboard of token buttons, and optionally a document to send
// instead of a message edit.
type View struct {
	Text string
	Rows [][]Button

	Document *Document
	// DeleteMessage asks the transport to remove the originating message
	// once the document is delivered.
	DeleteMessage bool
}

// chunkButtons splits buttons into rows of at most perRow entries.
func chunkButtons(buttons []Button, perRow int) [][]Button {
	if perRow <= 0 {
		perRow = 1
	}
	var rows [][]Button
	for len(buttons) > 0 {
		n := perRow
		if len(buttons) < n {
			n = len(buttons)
		}
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	return rows
}
