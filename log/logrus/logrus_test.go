package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/aliascache"
)

func TestLoggerAddsComponentAndFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Debug("primed aliases", aliascache.Fields{"requested": 3})

	e := hook.LastEntry()
	if e == nil {
		t.Fatalf("no entry logged")
	}
	if e.Message != "primed aliases" || e.Level != logrus.DebugLevel {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Data["component"] != "aliascache" || e.Data["requested"] != 3 {
		t.Fatalf("unexpected data %v", e.Data)
	}
}
