package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestConstraintViolation(t *testing.T) {
	Convey("Postgres errors expose their code and constraint", t, func() {
		err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "alliance_shares_pkey"})
		code, constraint, ok := constraintViolation(err)
		So(ok, ShouldBeTrue)
		So(code, ShouldEqual, pqUniqueViolation)
		So(constraint, ShouldEqual, "alliance_shares_pkey")
	})

	Convey("Other errors are not violations", t, func() {
		_, _, ok := constraintViolation(errors.New("connection refused"))
		So(ok, ShouldBeFalse)
	})
}

func TestCheckAffectedRows(t *testing.T) {
	Convey("Zero affected rows maps to the not-found error", t, func() {
		So(checkAffectedRows(fakeResult{rows: 0}, ErrSessionNotFound), ShouldEqual, ErrSessionNotFound)
		So(checkAffectedRows(fakeResult{rows: 1}, ErrSessionNotFound), ShouldBeNil)
		err := checkAffectedRows(fakeResult{err: errors.New("driver")}, ErrSessionNotFound)
		So(err, ShouldNotBeNil)
		So(err, ShouldNotEqual, ErrSessionNotFound)
	})
}
