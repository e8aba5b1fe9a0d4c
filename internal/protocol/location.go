package protocol

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/RoaringBitmap/roaring"
)

// StorageType is the physical tier backing a partition file.
type StorageType string

const (
	StorageLocalHDD      StorageType = "LOCAL_HDD"
	StorageLocalSSD      StorageType = "LOCAL_SSD"
	StorageDistributedFS StorageType = "DISTRIBUTED_FS"
	StorageMemory        StorageType = "MEMORY"
)

// IsLocal reports whether the tier is a disk attached to the worker.
func (t StorageType) IsLocal() bool {
	return t == StorageLocalHDD || t == StorageLocalSSD
}

// StorageInfo tells readers where a committed partition file lives.
type StorageInfo struct {
	Type       StorageType `json:"type"`
	MountPoint string      `json:"mountPoint,omitempty"`
	FilePath   string      `json:"filePath,omitempty"`
}

// Mode distinguishes the two replicas of a partition.
type Mode int

const (
	ModePrimary Mode = 0
	ModeReplica Mode = 1
)

func (m Mode) String() string {
	if m == ModeReplica {
		return "REPLICA"
	}
	return "PRIMARY"
}

// PartitionLocation identifies one replica of a partition. Locations are not
// modified after creation. Peer is a lookup relation to the other replica.
type PartitionLocation struct {
	ID            int
	Epoch         int
	Host          string
	RPCPort       int
	PushPort      int
	FetchPort     int
	ReplicatePort int
	Mode          Mode
	Peer          *PartitionLocation
	StorageInfo   StorageInfo
	// ProducerBitmap holds the producer ids that pushed data to the replica, when
	// the worker tracked them.
	ProducerBitmap *roaring.Bitmap
}

// FileName is the name of the partition file on the worker.
func (l *PartitionLocation) FileName() string {
	return fmt.Sprintf("%d-%d-%d", l.ID, l.Epoch, l.Mode)
}

// ParseFileName is the inverse of FileName. It returns a location carrying
// only the id, epoch and mode.
func ParseFileName(fileName string) (*PartitionLocation, error) {
	var id, epoch, mode int
	if _, err := fmt.Sscanf(fileName, "%d-%d-%d", &id, &epoch, &mode); err != nil {
		return nil, fmt.Errorf("invalid partition file name %q: %w", fileName, err)
	}
	if mode != int(ModePrimary) && mode != int(ModeReplica) {
		return nil, fmt.Errorf("invalid partition file name %q: unknown mode %d", fileName, mode)
	}
	loc := &PartitionLocation{ID: id, Epoch: epoch, Mode: Mode(mode)}
	if loc.FileName() != fileName {
		return nil, fmt.Errorf("invalid partition file name %q", fileName)
	}
	return loc, nil
}

// HostAndFetchPort is the key used by the worker exclusion table.
func (l *PartitionLocation) HostAndFetchPort() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.FetchPort))
}

// HostAndPushPort is the address pushes are sent to.
func (l *PartitionLocation) HostAndPushPort() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.PushPort))
}

func (l *PartitionLocation) String() string {
	peer := "none"
	if l.Peer != nil {
		peer = l.Peer.HostAndFetchPort()
	}
	return fmt.Sprintf("PartitionLocation{id:%d, epoch:%d, host:%s, mode:%s, storage:%s, peer:%s}",
		l.ID, l.Epoch, l.HostAndFetchPort(), l.Mode, l.StorageInfo.Type, peer)
}

type locationJSON struct {
	ID             int           `json:"id"`
	Epoch          int           `json:"epoch"`
	Host           string        `json:"host"`
	RPCPort        int           `json:"rpcPort"`
	PushPort       int           `json:"pushPort"`
	FetchPort      int           `json:"fetchPort"`
	ReplicatePort  int           `json:"replicatePort"`
	Mode           Mode          `json:"mode"`
	StorageInfo    StorageInfo   `json:"storageInfo"`
	ProducerBitmap string        `json:"producerBitmap,omitempty"`
	Peer           *locationJSON `json:"peer,omitempty"`
}

func toLocationJSON(l *PartitionLocation, withPeer bool) (*locationJSON, error) {
	out := &locationJSON{
		ID:            l.ID,
		Epoch:         l.Epoch,
		Host:          l.Host,
		RPCPort:       l.RPCPort,
		PushPort:      l.PushPort,
		FetchPort:     l.FetchPort,
		ReplicatePort: l.ReplicatePort,
		Mode:          l.Mode,
		StorageInfo:   l.StorageInfo,
	}
	if l.ProducerBitmap != nil {
		encoded, err := l.ProducerBitmap.ToBase64()
		if err != nil {
			return nil, err
		}
		out.ProducerBitmap = encoded
	}
	if withPeer && l.Peer != nil {
		peer, err := toLocationJSON(l.Peer, false)
		if err != nil {
			return nil, err
		}
		out.Peer = peer
	}
	return out, nil
}

func (j *locationJSON) toLocation() (*PartitionLocation, error) {
	l := &PartitionLocation{
		ID:            j.ID,
		Epoch:         j.Epoch,
		Host:          j.Host,
		RPCPort:       j.RPCPort,
		PushPort:      j.PushPort,
		FetchPort:     j.FetchPort,
		ReplicatePort: j.ReplicatePort,
		Mode:          j.Mode,
		StorageInfo:   j.StorageInfo,
	}
	if j.ProducerBitmap != "" {
		bitmap := roaring.New()
		if _, err := bitmap.FromBase64(j.ProducerBitmap); err != nil {
			return nil, fmt.Errorf("decode producer bitmap: %w", err)
		}
		l.ProducerBitmap = bitmap
	}
	return l, nil
}

// MarshalJSON encodes the location and one level of its peer.
func (l *PartitionLocation) MarshalJSON() ([]byte, error) {
	out, err := toLocationJSON(l, true)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a location and links its peer back to it.
func (l *PartitionLocation) UnmarshalJSON(data []byte) error {
	var in locationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	loc, err := in.toLocation()
	if err != nil {
		return err
	}
	if in.Peer != nil {
		peer, err := in.Peer.toLocation()
		if err != nil {
			return err
		}
		loc.Peer = peer
		peer.Peer = l
	}
	*l = *loc
	return nil
}
