package node

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/lithammer/shortuuid"
	loadavg "github.com/mikoim/go-loadavg"
)

type NodeID struct {
	Area string
	Key  string
}

var LocalNode NodeID

func (n NodeID) String() string {
	return fmt.Sprintf("(%s)%s", n.Area, n.Key)
}

func NewIdentifier(area string) NodeID {
	id := shortuuid.New() + strconv.FormatInt(time.Now().UnixNano(), 10)
	return NodeID{Area: area, Key: id}
}

// StatusInformation is a point-in-time snapshot reported by the status API.
type StatusInformation struct {
	NodeID       string         `json:"nodeId"`
	LoadAvg      []float64      `json:"loadAvg"`
	QueueLengths map[string]int `json:"queueLengths"`
	Policy       string         `json:"policy"`
}

// LoadAverages reads the host 1/5/15-minute load averages; empty on
// platforms where they are unavailable.
func LoadAverages() []float64 {
	la, err := loadavg.Parse()
	if err != nil {
		log.Printf("Could not read load average: %v", err)
		return nil
	}
	return []float64{la.LoadAverage1, la.LoadAverage5, la.LoadAverage10}
}
