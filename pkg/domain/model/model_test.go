package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/monfocus/monfocus/pkg/domain/model"
	"github.com/monfocus/monfocus/pkg/domain/types"
)

func TestNewNoteID(t *testing.T) {
	id1 := model.NewNoteID()
	id2 := model.NewNoteID()

	gt.Value(t, string(id1)).NotEqual("")
	gt.Value(t, id1).NotEqual(id2)
}

func TestChatSessionActive(t *testing.T) {
	session := &model.ChatSession{
		ID:        model.NewChatSessionID(),
		UserID:    "u-1",
		StartedAt: time.Now(),
	}
	gt.Bool(t, session.Active()).True()

	now := time.Now()
	session.EndedAt = &now
	gt.Bool(t, session.Active()).False()
}

func TestPrincipalCanRead(t *testing.T) {
	note := &model.Note{
		ID:       model.NewNoteID(),
		OwnerID:  "u-visitor",
		CourseID: "course-math",
	}

	t.Run("visitor reads own note", func(t *testing.T) {
		p := model.NewVisitor("u-visitor", []types.CourseID{"course-math"})
		gt.Bool(t, p.CanRead(note)).True()
	})

	t.Run("visitor cannot read another user's note", func(t *testing.T) {
		p := model.NewVisitor("u-other", nil)
		gt.Bool(t, p.CanRead(note)).False()
	})

	t.Run("teacher reads notes of taught courses", func(t *testing.T) {
		p := model.NewTeacher("u-teacher", []types.CourseID{"course-math"})
		gt.Bool(t, p.CanRead(note)).True()
	})

	t.Run("teacher cannot read notes of other courses", func(t *testing.T) {
		p := model.NewTeacher("u-teacher", []types.CourseID{"course-chem"})
		gt.Bool(t, p.CanRead(note)).False()
	})

	t.Run("teacher cannot read personal notes", func(t *testing.T) {
		personal := &model.Note{ID: model.NewNoteID(), OwnerID: "u-visitor"}
		p := model.NewTeacher("u-teacher", []types.CourseID{"course-math"})
		gt.Bool(t, p.CanRead(personal)).False()
	})
}

func TestChatEventMarshalJSON(t *testing.T) {
	t.Run("chunk", func(t *testing.T) {
		raw, err := json.Marshal(model.NewChunkEvent("Bonjour"))
		gt.NoError(t, err)
		gt.Value(t, string(raw)).Equal(`{"content":"Bonjour"}`)
	})

	t.Run("source with note", func(t *testing.T) {
		raw, err := json.Marshal(model.NewSourceEvent("note-1"))
		gt.NoError(t, err)
		gt.Value(t, string(raw)).Equal(`{"type":"source","source":"note-1"}`)
	})

	t.Run("source without note", func(t *testing.T) {
		raw, err := json.Marshal(model.NewSourceEvent(""))
		gt.NoError(t, err)
		gt.Value(t, string(raw)).Equal(`{"type":"source","source":null}`)
	})

	t.Run("end", func(t *testing.T) {
		raw, err := json.Marshal(model.NewEndEvent())
		gt.NoError(t, err)
		gt.Value(t, string(raw)).Equal(`{"type":"end"}`)
	})
}
