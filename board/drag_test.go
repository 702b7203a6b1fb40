package board_test

import (
	"errors"
	"testing"

	"github.com/Dosada05/alliance-board/board"
	"github.com/Dosada05/alliance-board/models"
	. "github.com/smartystreets/goconvey/convey"
)

type presenceCall struct {
	itemID   string
	dragging bool
}

type recordingPresence struct {
	calls []presenceCall
}

func (p *recordingPresence) BroadcastDrag(itemID string, dragging bool) {
	p.calls = append(p.calls, presenceCall{itemID, dragging})
}

func TestInsertionIndex(t *testing.T) {
	Convey("Given a tier with three items", t, func() {
		items := []models.Item{team(1), team(2), team(3)}
		hovered := board.Rect{Top: 100, Height: 40} // center at 120

		Convey("Hovering the tier itself appends", func() {
			So(board.InsertionIndex(items, board.DragTarget{ID: "A"}, board.Rect{}), ShouldEqual, 4)
		})
		Convey("A dragged center below the hovered center inserts after", func() {
			idx := board.InsertionIndex(items, board.DragTarget{ID: "team-2", Rect: hovered}, board.Rect{Top: 105, Height: 40})
			So(idx, ShouldEqual, 2)
		})
		Convey("A dragged center above the hovered center inserts before", func() {
			idx := board.InsertionIndex(items, board.DragTarget{ID: "team-2", Rect: hovered}, board.Rect{Top: 90, Height: 40})
			So(idx, ShouldEqual, 1)
		})
	})
}

func TestDragEngine(t *testing.T) {
	Convey("Given a board with S=[1,2,3], A=[4] and an engine", t, func() {
		store := board.NewStore(boardWith(map[models.TierKey][]int{
			models.TierS: {1, 2, 3},
			models.TierA: {4},
		}))
		presence := &recordingPresence{}
		engine := board.NewDragEngine(store, presence)

		So(engine.Phase(), ShouldEqual, board.DragIdle)

		Convey("Start announces presence and enters Dragging", func() {
			So(engine.Start("team-1"), ShouldBeNil)
			So(engine.Phase(), ShouldEqual, board.DragDragging)
			So(engine.ActiveID(), ShouldEqual, "team-1")
			So(presence.calls, ShouldResemble, []presenceCall{{"team-1", true}})
			So(engine.Start("team-2"), ShouldEqual, board.ErrDragInProgress)
		})

		Convey("Start rejects ids that are not items", func() {
			So(errors.Is(engine.Start("team-99"), board.ErrItemNotFound), ShouldBeTrue)
			So(errors.Is(engine.Start("S"), board.ErrItemNotFound), ShouldBeTrue)
			So(engine.Phase(), ShouldEqual, board.DragIdle)
		})

		Convey("Hovering another tier moves the item before the drop", func() {
			So(engine.Start("team-1"), ShouldBeNil)
			moved, err := engine.Over(board.DragTarget{ID: "A"}, board.Rect{})
			So(err, ShouldBeNil)
			So(moved, ShouldBeTrue)
			So(teamsOf(store.Snapshot(), models.TierA), ShouldResemble, []int{4, 1})
			So(teamsOf(store.Snapshot(), models.TierS), ShouldResemble, []int{2, 3})

			Convey("Hovering inside the new tier does not move it again", func() {
				moved, err := engine.Over(board.DragTarget{ID: "team-4"}, board.Rect{})
				So(err, ShouldBeNil)
				So(moved, ShouldBeFalse)
			})

			Convey("Dropping keeps the relocation and clears presence", func() {
				outcome, err := engine.Drop("A")
				So(err, ShouldBeNil)
				So(outcome.FromTier, ShouldEqual, models.TierS)
				So(outcome.ToTier, ShouldEqual, models.TierA)
				So(outcome.Reordered, ShouldBeFalse)
				So(engine.Phase(), ShouldEqual, board.DragIdle)
				So(presence.calls[len(presence.calls)-1], ShouldResemble, presenceCall{"team-1", false})
				So(store.Snapshot().ItemCount(), ShouldEqual, 4)
			})

			Convey("Dropping onto a neighbour reorders inside the new tier", func() {
				outcome, err := engine.Drop("team-4")
				So(err, ShouldBeNil)
				So(outcome.Reordered, ShouldBeTrue)
				So(teamsOf(store.Snapshot(), models.TierA), ShouldResemble, []int{1, 4})
			})

			Convey("Cancel restores the board from drag start", func() {
				So(engine.Cancel(), ShouldBeNil)
				So(engine.Phase(), ShouldEqual, board.DragCancelled)
				So(teamsOf(store.Snapshot(), models.TierS), ShouldResemble, []int{1, 2, 3})
				So(teamsOf(store.Snapshot(), models.TierA), ShouldResemble, []int{4})
				So(presence.calls[len(presence.calls)-1], ShouldResemble, presenceCall{"team-1", false})
			})

			Convey("Cancel keeps a peer's change that arrived during the gesture", func() {
				var causes []board.Cause
				unsubscribe := store.Subscribe(func(c board.Change) { causes = append(causes, c.Cause) })
				defer unsubscribe()

				remote, err := board.AddItem(store.Snapshot(), team(99), models.TierDNP)
				So(err, ShouldBeNil)
				store.ReplaceAllFrom(remote, board.CauseRemote)

				So(engine.Cancel(), ShouldBeNil)
				state := store.Snapshot()
				So(teamsOf(state, models.TierDNP), ShouldResemble, []int{99})
				So(teamsOf(state, models.TierS), ShouldResemble, []int{1, 2, 3})
				So(teamsOf(state, models.TierA), ShouldResemble, []int{4})
				So(causes, ShouldResemble, []board.Cause{board.CauseRemote, board.CauseLocal})
			})

			Convey("Cancel after a peer removed the item leaves the board alone", func() {
				remote := store.Snapshot()
				a := remote[models.TierA]
				a.Items = a.Items[:1]
				remote[models.TierA] = a
				store.ReplaceAllFrom(remote, board.CauseRemote)
				version := store.Version()

				So(engine.Cancel(), ShouldBeNil)
				So(store.Version(), ShouldEqual, version)
				So(teamsOf(store.Snapshot(), models.TierS), ShouldResemble, []int{2, 3})
			})
		})

		Convey("Hovering an item in another tier uses the center rule", func() {
			So(engine.Start("team-3"), ShouldBeNil)
			_, err := engine.Over(
				board.DragTarget{ID: "team-4", Rect: board.Rect{Top: 0, Height: 40}},
				board.Rect{Top: 30, Height: 40},
			)
			So(err, ShouldBeNil)
			So(teamsOf(store.Snapshot(), models.TierA), ShouldResemble, []int{4, 3})
		})

		Convey("Dropping in the same tier reorders from old to new index", func() {
			So(engine.Start("team-1"), ShouldBeNil)
			outcome, err := engine.Drop("team-3")
			So(err, ShouldBeNil)
			So(outcome.Reordered, ShouldBeTrue)
			So(teamsOf(store.Snapshot(), models.TierS), ShouldResemble, []int{2, 3, 1})
		})

		Convey("Dropping an item onto itself changes nothing", func() {
			So(engine.Start("team-2"), ShouldBeNil)
			version := store.Version()
			outcome, err := engine.Drop("team-2")
			So(err, ShouldBeNil)
			So(outcome.Reordered, ShouldBeFalse)
			So(store.Version(), ShouldEqual, version)
		})

		Convey("Releasing outside every target asks for a detached view", func() {
			So(engine.Start("team-2"), ShouldBeNil)
			outcome, err := engine.Drop("")
			So(err, ShouldBeNil)
			So(outcome.Detached, ShouldBeTrue)
			So(teamsOf(store.Snapshot(), models.TierS), ShouldResemble, []int{1, 2, 3})
			So(presence.calls, ShouldResemble, []presenceCall{{"team-2", true}, {"team-2", false}})
		})

		Convey("Over and Drop need an active gesture", func() {
			_, err := engine.Over(board.DragTarget{ID: "A"}, board.Rect{})
			So(err, ShouldEqual, board.ErrNotDragging)
			_, err = engine.Drop("A")
			So(err, ShouldEqual, board.ErrNotDragging)
			So(engine.Cancel(), ShouldEqual, board.ErrNotDragging)
		})
	})
}
