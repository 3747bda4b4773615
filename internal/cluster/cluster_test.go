package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigStore_MasterElection(t *testing.T) {
	c := New()
	c.AddNode(NodeInfo{Name: "a", Addr: "10.0.0.1:7000", MasterCandidate: true})
	c.AddNode(NodeInfo{Name: "b", Addr: "10.0.0.2:7000", MasterCandidate: false})

	c.SetMaster("b") // not a candidate, ignored
	assert.False(t, c.IsMaster("b"))

	c.SetMaster("a")
	assert.True(t, c.IsMaster("a"))
	assert.ElementsMatch(t, []string{"a"}, c.MasterCandidates())
}

func TestConfigStore_PeerAddrsExcludesSelf(t *testing.T) {
	c := New()
	c.AddNode(NodeInfo{Name: "a", Addr: "10.0.0.1:7000"})
	c.AddNode(NodeInfo{Name: "b", Addr: "10.0.0.2:7000"})
	c.AddNode(NodeInfo{Name: "c", Addr: "10.0.0.3:7000"})

	peers := c.PeerAddrs("a")
	assert.ElementsMatch(t, []string{"10.0.0.2:7000", "10.0.0.3:7000"}, peers)
}

func TestConfigStore_RemoveNodeClearsMaster(t *testing.T) {
	c := New()
	c.AddNode(NodeInfo{Name: "a", Addr: "10.0.0.1:7000", MasterCandidate: true})
	c.SetMaster("a")
	require := assert.New(t)
	require.True(c.IsMaster("a"))

	c.RemoveNode("a")
	require.False(c.IsMaster("a"))
}
