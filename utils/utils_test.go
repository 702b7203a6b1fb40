package utils_test

import (
	"testing"

	"github.com/Dosada05/alliance-board/utils"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSessionIDs(t *testing.T) {
	Convey("Generated session ids are short base36 tokens", t, func() {
		seen := map[string]bool{}
		for i := 0; i < 200; i++ {
			id, err := utils.NewSessionID()
			So(err, ShouldBeNil)
			So(len(id), ShouldEqual, utils.SessionIDLength)
			So(utils.IsValidSessionID(id), ShouldBeTrue)
			seen[id] = true
		}
		So(len(seen), ShouldBeGreaterThan, 190)
	})

	Convey("Session id validation", t, func() {
		So(utils.IsValidSessionID("abc1234"), ShouldBeTrue)
		So(utils.IsValidSessionID("abc"), ShouldBeFalse)
		So(utils.IsValidSessionID("ABC1234"), ShouldBeFalse)
		So(utils.IsValidSessionID("abc-123"), ShouldBeFalse)
		So(utils.IsValidSessionID(""), ShouldBeFalse)
	})
}

func TestIsValidEmail(t *testing.T) {
	Convey("Email validation", t, func() {
		So(utils.IsValidEmail("scout@team254.org"), ShouldBeTrue)
		So(utils.IsValidEmail("first.last+frc@example.co"), ShouldBeTrue)
		So(utils.IsValidEmail("no-at-sign"), ShouldBeFalse)
		So(utils.IsValidEmail("a@b"), ShouldBeFalse)
		So(utils.IsValidEmail(""), ShouldBeFalse)
	})
}
