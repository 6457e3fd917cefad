package sessions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	sent [][]byte
}

func (c *fakeConn) Send(data []byte) bool {
	c.sent = append(c.sent, data)
	return true
}

func TestNewSessionID_Unique(t *testing.T) {
	id1 := NewSessionID()
	id2 := NewSessionID()
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(NewSessionID(), &fakeConn{})
	r.Register(NewSessionID(), &fakeConn{})
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_SessionsFor(t *testing.T) {
	r := NewRegistry()
	c1 := &fakeConn{}
	c2 := &fakeConn{}
	c3 := &fakeConn{}
	id1, id2, id3 := NewSessionID(), NewSessionID(), NewSessionID()
	r.Register(id1, c1)
	r.Register(id2, c2)
	r.Register(id3, c3)

	r.Assign(id1, "file-a")
	r.Assign(id2, "file-a")

	conns := r.SessionsFor("file-a")
	assert.Len(t, conns, 2)
	assert.Empty(t, r.SessionsFor("file-b"))
	assert.Empty(t, r.SessionsFor(""), "unassigned sessions never match")
}

func TestRegistry_AssignReplacesBinding(t *testing.T) {
	r := NewRegistry()
	id := NewSessionID()
	r.Register(id, &fakeConn{})
	r.Assign(id, "file-a")
	r.Assign(id, "file-b")
	assert.Empty(t, r.SessionsFor("file-a"))
	assert.Len(t, r.SessionsFor("file-b"), 1)
}

func TestRegistry_AssignUnregisteredSessionIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Assign(NewSessionID(), "file-a")
	assert.Empty(t, r.SessionsFor("file-a"))
	assert.Zero(t, r.Len())
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	id := NewSessionID()
	r.Register(id, &fakeConn{})
	r.Assign(id, "file-a")
	r.Unregister(id)
	r.Unregister(id)
	assert.Zero(t, r.Len())
	assert.Empty(t, r.SessionsFor("file-a"))
}
