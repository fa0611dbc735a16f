package engine

import (
	"context"

	"github.com/tailedflox9-maker/studychat/internal/models"
)

// optimisticMutate applies a local mutation, awaits its persistence call, and
// rolls the mutation back when persistence fails after retries. apply and
// rollback run under the state lock; persist does not.
func (e *Engine) optimisticMutate(ctx context.Context, notice string, apply, rollback func(), persist func(ctx context.Context) error) error {
	e.mu.Lock()
	apply()
	e.mu.Unlock()

	if err := persist(ctx); err != nil {
		e.mu.Lock()
		rollback()
		e.sink(Update{Kind: UpdateNotice, Notice: notice})
		e.mu.Unlock()
		return err
	}
	return nil
}

// DeleteConversation removes a conversation optimistically before the store
// call. On persistence failure the conversation is reinserted at its original
// position and, if it had been selected, reselected.
func (e *Engine) DeleteConversation(ctx context.Context, id string) error {
	e.mu.Lock()
	conv, ok := e.conversations[id]
	if !ok {
		e.mu.Unlock()
		return ErrNoSelection
	}

	pos := 0
	for i, oid := range e.order {
		if oid == id {
			pos = i
			break
		}
	}
	wasSelected := e.currentConvID == id

	delete(e.conversations, id)
	e.order = append(e.order[:pos], e.order[pos+1:]...)
	if wasSelected {
		// Next most recent remaining conversation, or no selection.
		if pos < len(e.order) {
			e.currentConvID = e.order[pos]
		} else if len(e.order) > 0 {
			e.currentConvID = e.order[len(e.order)-1]
		} else {
			e.currentConvID = ""
		}
	}
	e.sink(Update{Kind: UpdateConversations})
	e.sink(Update{Kind: UpdateSelection, ConversationID: e.currentConvID, NoteID: e.currentNoteID})
	e.mu.Unlock()

	if err := e.store.DeleteConversation(ctx, id); err != nil {
		e.mu.Lock()
		e.conversations[id] = conv
		if pos > len(e.order) {
			pos = len(e.order)
		}
		e.order = append(e.order[:pos], append([]string{id}, e.order[pos:]...)...)
		if wasSelected {
			e.currentConvID = id
		}
		e.sink(Update{Kind: UpdateConversations})
		e.sink(Update{Kind: UpdateSelection, ConversationID: e.currentConvID, NoteID: e.currentNoteID})
		e.sink(Update{Kind: UpdateNotice, Notice: "Conversation could not be deleted."})
		e.mu.Unlock()
		return err
	}
	return nil
}

// RenameConversation sets a title optimistically, reverting on failure.
func (e *Engine) RenameConversation(ctx context.Context, id, title string) error {
	e.mu.Lock()
	conv, ok := e.conversations[id]
	if !ok {
		e.mu.Unlock()
		return ErrNoSelection
	}
	prior := conv.Title
	e.mu.Unlock()

	return e.optimisticMutate(ctx, "Conversation could not be renamed.",
		func() {
			conv.Title = title
			e.sink(Update{Kind: UpdateConversations})
		},
		func() {
			conv.Title = prior
			e.sink(Update{Kind: UpdateConversations})
		},
		func(ctx context.Context) error {
			return e.store.UpdateConversationTitle(ctx, id, title)
		},
	)
}

// TogglePin flips the pin optimistically, then corrects to the store's
// authoritative value on success or flips back on failure.
func (e *Engine) TogglePin(ctx context.Context, id string) error {
	e.mu.Lock()
	conv, ok := e.conversations[id]
	if !ok {
		e.mu.Unlock()
		return ErrNoSelection
	}
	prior := conv.Pinned
	conv.Pinned = !prior
	e.resort()
	e.sink(Update{Kind: UpdateConversations})
	e.mu.Unlock()

	pinned, err := e.store.TogglePin(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	conv, ok = e.conversations[id]
	if !ok {
		return err
	}
	if err != nil {
		conv.Pinned = prior
		e.resort()
		e.sink(Update{Kind: UpdateConversations})
		e.sink(Update{Kind: UpdateNotice, Notice: "Pin state could not be saved."})
		return err
	}
	if conv.Pinned != pinned {
		conv.Pinned = pinned
		e.resort()
		e.sink(Update{Kind: UpdateConversations})
	}
	return nil
}

// SaveNote persists a note and only then adds it to local state. Unlike
// messages, a note has no optimistic justification: it does not exist until
// the store confirms it.
func (e *Engine) SaveNote(ctx context.Context, title, content string) (*models.Note, error) {
	e.mu.Lock()
	convID := e.currentConvID
	e.mu.Unlock()

	note := models.NewNote(e.userID, title, content, convID)
	if err := e.store.CreateNote(ctx, note); err != nil {
		e.notify(Update{Kind: UpdateNotice, Notice: "Note could not be saved."})
		return nil, err
	}

	e.mu.Lock()
	e.notes = append(e.notes, *note)
	e.sink(Update{Kind: UpdateNotes})
	e.mu.Unlock()
	return note, nil
}

// LoadNotes refreshes the note list from the store.
func (e *Engine) LoadNotes(ctx context.Context) error {
	notes, err := e.store.ListNotes(ctx, e.userID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.notes = notes
	e.sink(Update{Kind: UpdateNotes})
	e.mu.Unlock()
	return nil
}

// Notes returns a snapshot of the loaded notes.
func (e *Engine) Notes() []models.Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Note(nil), e.notes...)
}

// DeleteNote removes a note, clearing its selection if active. Deletion is
// awaited like conversation deletion; the local copy is only dropped on
// success.
func (e *Engine) DeleteNote(ctx context.Context, id string) error {
	if err := e.store.DeleteNote(ctx, id); err != nil {
		e.notify(Update{Kind: UpdateNotice, Notice: "Note could not be deleted."})
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, n := range e.notes {
		if n.ID == id {
			e.notes = append(e.notes[:i], e.notes[i+1:]...)
			break
		}
	}
	if e.currentNoteID == id {
		e.currentNoteID = ""
		e.sink(Update{Kind: UpdateSelection})
	}
	e.sink(Update{Kind: UpdateNotes})
	return nil
}
