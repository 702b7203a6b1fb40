package persistence_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/alliance-board/persistence"
	. "github.com/smartystreets/goconvey/convey"
)

type eventSink struct {
	mu     sync.Mutex
	events []persistence.StorageEvent
}

func (s *eventSink) add(ev persistence.StorageEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.NewValue)
	}
	return out
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestSQLiteBus(t *testing.T) {
	Convey("Given two processes' views of one store file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "board.sqlite")

		first, err := persistence.OpenSQLiteLocalStore(ctx, path)
		So(err, ShouldBeNil)
		defer first.Close()
		second, err := persistence.OpenSQLiteLocalStore(ctx, path)
		So(err, ShouldBeNil)
		defer second.Close()

		publisher := persistence.NewSQLiteBus(first, persistence.WithPollInterval(10*time.Millisecond))
		listener := persistence.NewSQLiteBus(second, persistence.WithPollInterval(10*time.Millisecond))

		publisher.Publish(persistence.StorageEvent{Key: persistence.KeyBoardData, NewValue: "old", Origin: "w1"})

		sink := &eventSink{}
		unsubscribe := listener.Subscribe("w2", sink.add)
		defer unsubscribe()

		Convey("events from other origins arrive in order, older ones are not replayed", func() {
			publisher.Publish(persistence.StorageEvent{Key: persistence.KeyBoardData, NewValue: "a", Origin: "w1"})
			publisher.Publish(persistence.StorageEvent{Key: persistence.KeyEventCode, NewValue: "b", Origin: "w3"})

			So(waitFor(func() bool { return len(sink.values()) == 2 }), ShouldBeTrue)
			So(sink.values(), ShouldResemble, []string{"a", "b"})
		})

		Convey("a subscriber does not hear its own origin", func() {
			publisher.Publish(persistence.StorageEvent{Key: persistence.KeyBoardData, NewValue: "mine", Origin: "w2"})
			publisher.Publish(persistence.StorageEvent{Key: persistence.KeyBoardData, NewValue: "theirs", Origin: "w1"})

			So(waitFor(func() bool { return len(sink.values()) == 1 }), ShouldBeTrue)
			time.Sleep(50 * time.Millisecond)
			So(sink.values(), ShouldResemble, []string{"theirs"})
		})

		Convey("nothing is delivered after unsubscribe returns", func() {
			unsubscribe()
			publisher.Publish(persistence.StorageEvent{Key: persistence.KeyBoardData, NewValue: "late", Origin: "w1"})
			time.Sleep(80 * time.Millisecond)
			So(sink.values(), ShouldBeEmpty)
		})
	})
}
