package persistence_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Dosada05/alliance-board/persistence"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSQLiteLocalStore(t *testing.T) {
	Convey("Given a local store file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "board.sqlite")
		local, err := persistence.OpenSQLiteLocalStore(ctx, path)
		So(err, ShouldBeNil)

		Convey("Missing keys report ErrKeyNotFound", func() {
			_, err := local.Get(ctx, persistence.KeyEventCode)
			So(errors.Is(err, persistence.ErrKeyNotFound), ShouldBeTrue)
			So(local.Close(), ShouldBeNil)
		})

		Convey("Values survive reopening and are overwritten in place", func() {
			So(local.Set(ctx, persistence.KeyEventCode, "2024txhou"), ShouldBeNil)
			So(local.Set(ctx, persistence.KeyEventCode, "2024cmptx"), ShouldBeNil)
			So(local.Close(), ShouldBeNil)

			reopened, err := persistence.OpenSQLiteLocalStore(ctx, path)
			So(err, ShouldBeNil)
			defer reopened.Close()
			v, err := reopened.Get(ctx, persistence.KeyEventCode)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, "2024cmptx")
		})
	})
}

func TestMemoryBus(t *testing.T) {
	Convey("Events reach every subscriber except the publisher", t, func() {
		bus := persistence.NewMemoryBus()
		var gotA, gotB []string
		unsubA := bus.Subscribe("a", func(ev persistence.StorageEvent) { gotA = append(gotA, ev.NewValue) })
		bus.Subscribe("b", func(ev persistence.StorageEvent) { gotB = append(gotB, ev.NewValue) })

		bus.Publish(persistence.StorageEvent{Key: persistence.KeyEventCode, NewValue: "1", Origin: "a"})
		So(gotA, ShouldBeEmpty)
		So(gotB, ShouldResemble, []string{"1"})

		unsubA()
		unsubA()
		bus.Publish(persistence.StorageEvent{Key: persistence.KeyEventCode, NewValue: "2", Origin: "b"})
		So(gotA, ShouldBeEmpty)
		So(gotB, ShouldResemble, []string{"1"})
	})
}
