package automation

import (
	"testing"
	"time"

	"groupbot-gateway/internal/models"
	"groupbot-gateway/internal/store"
)

var now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func responder(id uint, mt models.MatchType, caseSensitive bool, keywords ...string) models.KeywordResponder {
	return models.KeywordResponder{
		ID: id, GroupID: testGroup, Keywords: keywords, MatchType: mt,
		CaseSensitive: caseSensitive, Responses: []string{"ok"}, IsActive: true,
	}
}

func TestMatcher_KeywordSemantics(t *testing.T) {
	tests := []struct {
		name string
		r    models.KeywordResponder
		text string
		want bool
	}{
		{"contains ignores case", responder(1, models.MatchContains, false, "world"), "Hello World", true},
		{"contains respects case", responder(1, models.MatchContains, true, "world"), "Hello World", false},
		{"contains miss", responder(1, models.MatchContains, false, "bye"), "Hello World", false},
		{"exact trims", responder(1, models.MatchExact, false, "gm"), "  GM ", true},
		{"exact is whole text", responder(1, models.MatchExact, false, "gm"), "gm all", false},
		{"exact case sensitive", responder(1, models.MatchExact, true, "gm"), "GM", false},
		{"starts with", responder(1, models.MatchStartsWith, false, "hello"), "Hello there", true},
		{"starts with miss", responder(1, models.MatchStartsWith, false, "hello"), "oh hello", false},
		{"regex", responder(1, models.MatchRegex, true, `^\d{3}$`), "123", true},
		{"regex miss", responder(1, models.MatchRegex, true, `^\d{3}$`), "1234", false},
		{"regex ignores case", responder(1, models.MatchRegex, false, `hel+o`), "HELLLO", true},
		{"any keyword", responder(1, models.MatchContains, false, "foo", "bar"), "a bar", true},
		{"blank keyword never matches", responder(1, models.MatchContains, false, " "), "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(NewCooldowns())
			snap := &store.Snapshot{GroupID: testGroup, Responders: []models.KeywordResponder{tt.r}}
			got := len(m.Match(message(tt.text, ann), snap, now)) == 1
			if got != tt.want {
				t.Errorf("match(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatcher_BadRegexSkipsKeywordOnly(t *testing.T) {
	m := NewMatcher(NewCooldowns())
	var errs []error
	m.OnError = func(err error) { errs = append(errs, err) }

	snap := &store.Snapshot{
		GroupID: testGroup,
		Responders: []models.KeywordResponder{
			responder(1, models.MatchRegex, false, "([", "spam"),
			responder(2, models.MatchContains, false, "spam"),
		},
	}

	matches := m.Match(message("spam here", ann), snap, now)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d match errors, want 1", len(errs))
	}
	if me, ok := errs[0].(*MatchError); !ok || me.ID != 1 || me.Pattern != "([" {
		t.Errorf("error = %#v", errs[0])
	}
}

func TestMatcher_OrderAndFireOnce(t *testing.T) {
	m := NewMatcher(NewCooldowns())
	snap := &store.Snapshot{
		GroupID: testGroup,
		Workflows: []models.Workflow{
			{ID: 3, Name: "kw", TriggerType: models.TriggerKeyword, TriggerConfig: models.TriggerConfig{Keywords: []string{"hi", "there"}, MatchType: models.MatchContains}},
			{ID: 7, Name: "any", TriggerType: models.TriggerMessage},
			{ID: 9, Name: "joins", TriggerType: models.TriggerNewMember},
			{ID: 11, Name: "cmd", TriggerType: models.TriggerCommand, TriggerConfig: models.TriggerConfig{Command: "hi"}},
		},
		Responders: []models.KeywordResponder{
			responder(2, models.MatchContains, false, "hi", "there", "/hi"),
		},
		Commands: []models.CustomCommand{
			{ID: 4, Command: "bye", ResponseContent: "x", IsActive: true},
			{ID: 5, Command: "hi", ResponseContent: "x", IsActive: true},
		},
	}

	matches := m.Match(message("/hi there", ann), snap, now)

	type key struct {
		kind models.DefinitionKind
		id   uint
	}
	want := []key{
		{models.KindWorkflow, 3},
		{models.KindWorkflow, 7},
		{models.KindWorkflow, 11},
		{models.KindResponder, 2},
		{models.KindCommand, 5},
	}
	if len(matches) != len(want) {
		t.Fatalf("got %d matches, want %d", len(matches), len(want))
	}
	for i, w := range want {
		if matches[i].Kind != w.kind || matches[i].DefinitionID() != w.id {
			t.Errorf("match[%d] = %s/%d, want %s/%d", i, matches[i].Kind, matches[i].DefinitionID(), w.kind, w.id)
		}
	}
	if matches[2].Args != "there" || matches[4].Args != "there" {
		t.Errorf("args = %q / %q", matches[2].Args, matches[4].Args)
	}
}

func TestMatcher_EventKinds(t *testing.T) {
	m := NewMatcher(NewCooldowns())
	snap := &store.Snapshot{
		GroupID: testGroup,
		Workflows: []models.Workflow{
			{ID: 1, TriggerType: models.TriggerNewMember},
			{ID: 2, TriggerType: models.TriggerSchedule, TriggerConfig: models.TriggerConfig{Schedule: "30 8 * * *"}},
			{ID: 3, TriggerType: models.TriggerEvent, TriggerConfig: models.TriggerConfig{EventName: "deploy"}},
			{ID: 4, TriggerType: models.TriggerSchedule, TriggerConfig: models.TriggerConfig{Schedule: "bogus"}},
		},
		Responders: []models.KeywordResponder{responder(1, models.MatchContains, false, "deploy")},
	}
	var errs int
	m.OnError = func(error) { errs++ }

	chat := Chat{ID: testGroup}
	tests := []struct {
		name string
		ev   Event
		want []uint
	}{
		{"join", NewMember{Chat: chat, User: ann}, []uint{1}},
		{"tick on time", ScheduledTick{Chat: chat, Time: time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)}, []uint{2}},
		{"tick off time", ScheduledTick{Chat: chat, Time: time.Date(2026, 4, 1, 8, 31, 0, 0, time.UTC)}, nil},
		{"named event", GenericEvent{Chat: chat, Name: "deploy"}, []uint{3}},
		{"other event", GenericEvent{Chat: chat, Name: "release"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := m.Match(tt.ev, snap, now)
			if len(matches) != len(tt.want) {
				t.Fatalf("got %d matches, want %d", len(matches), len(tt.want))
			}
			for i, id := range tt.want {
				if matches[i].Kind != models.KindWorkflow || matches[i].DefinitionID() != id {
					t.Errorf("match[%d] = %s/%d, want workflow/%d", i, matches[i].Kind, matches[i].DefinitionID(), id)
				}
			}
		})
	}
	if errs == 0 {
		t.Error("bogus schedule should report a match error")
	}
}

func TestMatcher_MessageWorkflowIgnoresEmptyText(t *testing.T) {
	m := NewMatcher(NewCooldowns())
	snap := &store.Snapshot{Workflows: []models.Workflow{{ID: 1, TriggerType: models.TriggerMessage}}}
	if n := len(m.Match(message("   ", ann), snap, now)); n != 0 {
		t.Errorf("empty message matched %d workflows", n)
	}
}

func TestMatcher_CooldownIsReadOnly(t *testing.T) {
	cd := NewCooldowns()
	m := NewMatcher(cd)
	r := responder(1, models.MatchContains, false, "gm")
	r.CooldownSeconds = 60
	snap := &store.Snapshot{Responders: []models.KeywordResponder{r}}

	for i := 0; i < 2; i++ {
		if n := len(m.Match(message("gm", ann), snap, now)); n != 1 {
			t.Fatalf("match %d: got %d, want 1", i, n)
		}
	}

	cd.Claim(1, 60, now)
	if n := len(m.Match(message("gm", ann), snap, now.Add(30*time.Second))); n != 0 {
		t.Errorf("cooling responder matched")
	}
	if n := len(m.Match(message("gm", ann), snap, now.Add(60*time.Second))); n != 1 {
		t.Errorf("responder should be ready after the cooldown")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
		ok   bool
	}{
		{"/rules", Command{Name: "rules"}, true},
		{"  /ban@GroupBot   spammer  ", Command{Name: "ban", Bot: "GroupBot", Args: "spammer"}, true},
		{"/warn\nbe nice", Command{Name: "warn", Args: "be nice"}, true},
		{"/", Command{}, false},
		{"/@bot", Command{}, false},
		{"hello /rules", Command{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCommand(%q) = (%+v, %v), want (%+v, %v)", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCommand_AddressedTo(t *testing.T) {
	tests := []struct {
		bot, username string
		want          bool
	}{
		{"", "GroupBot", true},
		{"GroupBot", "GroupBot", true},
		{"groupbot", "@GroupBot", true},
		{"OtherBot", "GroupBot", false},
		{"OtherBot", "", true},
	}
	for _, tt := range tests {
		if got := (Command{Name: "ban", Bot: tt.bot}).AddressedTo(tt.username); got != tt.want {
			t.Errorf("Command{Bot: %q}.AddressedTo(%q) = %v, want %v", tt.bot, tt.username, got, tt.want)
		}
	}
}

func TestCooldowns_ClaimRelease(t *testing.T) {
	cd := NewCooldowns()
	if !cd.Claim(7, 10, now) {
		t.Fatal("first claim should succeed")
	}
	if cd.Claim(7, 10, now.Add(9*time.Second)) {
		t.Error("claim inside cooldown should fail")
	}
	cd.Release(7, now)
	if !cd.Claim(7, 10, now.Add(9*time.Second)) {
		t.Error("claim after release should succeed")
	}
	cd.Release(7, now)
	if cd.Ready(7, 10, now.Add(10*time.Second)) {
		t.Error("releasing a stale claim must not clear the newer one")
	}
	if !cd.Ready(7, 10, now.Add(19*time.Second)) {
		t.Error("responder should be ready once the newer claim cooled down")
	}
	if !cd.Claim(8, 0, now) || !cd.Claim(8, 0, now) {
		t.Error("zero cooldown never blocks")
	}
}

func TestRender(t *testing.T) {
	ev := ChatMessage{
		Chat:   Chat{ID: testGroup, Title: "Go Gophers"},
		Text:   "/greet everyone",
		Sender: User{ID: "42", Username: "ann_dev"},
	}
	vars := variables(ev, "everyone")

	got := render("{user} ({username}, {user_id}) in {group}/{group_id}: {args} {unknown} {text}", vars)
	want := "@ann_dev (ann_dev, 42) in Go Gophers/" + testGroup + ": everyone {unknown} /greet everyone"
	if got != want {
		t.Errorf("render() = %q\nwant       %q", got, want)
	}

	ge := GenericEvent{Chat: Chat{ID: testGroup}, Name: "deploy"}
	if got := render("{event} in {group} by {user}", variables(ge, "")); got != "deploy in "+testGroup+" by {user}" {
		t.Errorf("render(generic) = %q", got)
	}
}
