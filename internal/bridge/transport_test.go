package bridge

import (
	"context"

	"github.com/smtp2tg/smtp2tg/internal/telegram"
)

// fakeTransport records every send and can be told to fail per chat or
// globally. It is shared by the tests of this package.
type fakeTransport struct {
	texts   []sentText
	plains  []sentText
	docs    []sentDoc
	batches []sentBatch

	// failChats makes sends to the listed chats fail.
	failChats map[telegram.ChatID]error

	// failAll makes every send fail.
	failAll error
}

type sentText struct {
	chat telegram.ChatID
	text string
}

type sentDoc struct {
	chat telegram.ChatID
	doc  telegram.Document
}

type sentBatch struct {
	chat telegram.ChatID
	docs []telegram.Document
}

func (f *fakeTransport) fail(chat telegram.ChatID) error {
	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.failChats[chat]; ok {
		return err
	}
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, chat telegram.ChatID, text string) error {
	if err := f.fail(chat); err != nil {
		return err
	}
	f.texts = append(f.texts, sentText{chat: chat, text: text})
	return nil
}

func (f *fakeTransport) SendPlainText(_ context.Context, chat telegram.ChatID, text string) error {
	if err := f.fail(chat); err != nil {
		return err
	}
	f.plains = append(f.plains, sentText{chat: chat, text: text})
	return nil
}

func (f *fakeTransport) SendDocument(_ context.Context, chat telegram.ChatID, doc telegram.Document) error {
	if err := f.fail(chat); err != nil {
		return err
	}
	f.docs = append(f.docs, sentDoc{chat: chat, doc: doc})
	return nil
}

func (f *fakeTransport) SendDocumentBatch(_ context.Context, chat telegram.ChatID, docs []telegram.Document) error {
	if err := f.fail(chat); err != nil {
		return err
	}
	f.batches = append(f.batches, sentBatch{chat: chat, docs: docs})
	return nil
}

// diagnostics returns the texts sent to the given chat, which is how tests
// observe reporter activity.
func (f *fakeTransport) diagnostics(chat telegram.ChatID) []string {
	var out []string
	for _, s := range f.texts {
		if s.chat == chat {
			out = append(out, s.text)
		}
	}
	for _, s := range f.plains {
		if s.chat == chat {
			out = append(out, s.text)
		}
	}
	return out
}
