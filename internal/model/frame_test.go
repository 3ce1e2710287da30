package model_test

import (
	"encoding/json"
	"testing"

	"galle/internal/model"
)

func TestParseFrameAuth(t *testing.T) {
	data := []byte(`{"type":"auth","token":"abc","emisor":"7"}`)

	frame, err := model.ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}

	if !frame.IsAuth() {
		t.Fatal("expected auth frame")
	}
	if frame.Token != "abc" {
		t.Fatalf("unexpected token: %q", frame.Token)
	}
	if frame.Emisor != "7" {
		t.Fatalf("unexpected emisor: %q", frame.Emisor)
	}
}

func TestParseFrameNumericIdentities(t *testing.T) {
	data := []byte(`{"emisor":7,"receptor":44}`)

	frame, err := model.ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}

	if frame.Emisor != "7" {
		t.Fatalf("numeric emisor not normalized: %q", frame.Emisor)
	}
	if frame.Recipient.Kind != model.RecipientSingle || frame.Recipient.ID != "44" {
		t.Fatalf("unexpected recipient: %+v", frame.Recipient)
	}
}

func TestParseFrameSerializedGroupReceptor(t *testing.T) {
	data := []byte(`{"emisor":"1","receptor":"[\"1\",\"44\"]"}`)

	frame, err := model.ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}

	if frame.Recipient.Kind != model.RecipientGroup {
		t.Fatalf("expected group recipient, got %+v", frame.Recipient)
	}
	if len(frame.Recipient.IDs) != 2 || frame.Recipient.IDs[0] != "1" || frame.Recipient.IDs[1] != "44" {
		t.Fatalf("unexpected group ids: %v", frame.Recipient.IDs)
	}
}

func TestParseFrameBareArrayReceptor(t *testing.T) {
	data := []byte(`{"emisor":"1","receptor":[2,"3"]}`)

	frame, err := model.ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}

	if frame.Recipient.Kind != model.RecipientGroup {
		t.Fatalf("expected group recipient, got %+v", frame.Recipient)
	}
	if len(frame.Recipient.IDs) != 2 || frame.Recipient.IDs[0] != "2" || frame.Recipient.IDs[1] != "3" {
		t.Fatalf("unexpected group ids: %v", frame.Recipient.IDs)
	}
}

func TestParseFrameNoReceptor(t *testing.T) {
	frame, err := model.ParseFrame([]byte(`{"emisor":"1","mensaje":"hola"}`))
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}

	if frame.Recipient.Kind != model.RecipientNone {
		t.Fatalf("expected no recipient, got %+v", frame.Recipient)
	}
}

func TestParseFrameInvalid(t *testing.T) {
	for _, data := range []string{"not json", `"just a string"`, `null`, `[1,2]`} {
		if _, err := model.ParseFrame([]byte(data)); err == nil {
			t.Errorf("expected error for %q", data)
		}
	}
}

func TestFrameRawIsVerbatim(t *testing.T) {
	data := []byte(`{"emisor":"1","receptor":"2","mensaje":"hola","adjunto":null}`)

	frame, err := model.ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}

	if string(frame.Raw()) != string(data) {
		t.Fatalf("raw payload changed: %s", frame.Raw())
	}
}

func TestRecipientWithout(t *testing.T) {
	r := model.Recipient{Kind: model.RecipientGroup, IDs: []string{"1", "44"}}

	got := r.Without("1")
	if len(got) != 1 || got[0] != "44" {
		t.Fatalf("unexpected remainder: %v", got)
	}

	solo := model.Recipient{Kind: model.RecipientGroup, IDs: []string{"1"}}
	if rest := solo.Without("1"); len(rest) != 0 {
		t.Fatalf("expected empty remainder, got %v", rest)
	}
}

func TestPersistBodyKeepsConversationID(t *testing.T) {
	frame, err := model.ParseFrame([]byte(`{"emisor":"1","mensaje":"hola","conversacion_id":"c9"}`))
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}

	body, err := frame.PersistBody()
	if err != nil {
		t.Fatalf("PersistBody err: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("persist body is not JSON: %v", err)
	}
	if decoded["conversacion_id"] != "c9" {
		t.Fatalf("conversacion_id missing from body: %v", decoded)
	}
	if decoded["mensaje"] != "hola" {
		t.Fatalf("payload field lost: %v", decoded)
	}
}
