package lockfile

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Marker file naming.
const (
	ExclusiveSuffix = ".lock"
	SharedInfix     = ".rlock-"
	graveInfix      = ".stale-"
)

// Mode is the intent of a lock holder.
type Mode int

const (
	// Shared admits any number of concurrent holders and no exclusive one.
	Shared Mode = iota
	// Exclusive admits a single holder and no shared ones.
	Exclusive
)

// String returns the mode name written into markers.
func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// Marker is the JSON body of a marker file.
type Marker struct {
	Owner      string    `json:"owner"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	Mode       string    `json:"mode"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// ExclusiveMarkerPath returns the exclusive marker location for target.
func ExclusiveMarkerPath(target string) string {
	return target + ExclusiveSuffix
}

func sharedMarkerPath(target, owner string) string {
	return target + SharedInfix + owner
}

// IsMarkerFile reports whether name (a base name) is a lock marker or a
// reclaimed marker awaiting deletion.
func IsMarkerFile(name string) bool {
	return strings.HasSuffix(name, ExclusiveSuffix) ||
		strings.Contains(name, SharedInfix) ||
		strings.Contains(name, ExclusiveSuffix+graveInfix)
}

// markerState is the lock state implied by one marker location.
type markerState int

const (
	stateFree markerState = iota
	stateHeld
	stateStale
)

func (s markerState) String() string {
	switch s {
	case stateFree:
		return "free"
	case stateHeld:
		return "held"
	case stateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// observation is what a process saw at a marker location. marker is nil when
// the body could not be decoded (a holder that crashed between create and
// write leaves an empty file).
type observation struct {
	marker  *Marker
	modTime time.Time
}

// lastSeen is the latest sign of life of the holder.
func (o *observation) lastSeen() time.Time {
	t := o.modTime
	if o.marker != nil && o.marker.AcquiredAt.After(t) {
		t = o.marker.AcquiredAt
	}
	return t
}

func (o *observation) owner() string {
	if o == nil || o.marker == nil {
		return ""
	}
	return o.marker.Owner
}

// classify is the marker state machine: no marker is Free, a marker seen
// alive within staleAfter is Held, anything older is Stale.
func classify(obs *observation, now time.Time, staleAfter time.Duration) markerState {
	if obs == nil {
		return stateFree
	}
	if now.Sub(obs.lastSeen()) > staleAfter {
		return stateStale
	}
	return stateHeld
}

// observe reads the marker at path. It returns (nil, nil) when there is none.
func observe(path string) (*observation, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	obs := &observation{modTime: info.ModTime()}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var m Marker
	if json.Unmarshal(data, &m) == nil && m.Owner != "" {
		obs.marker = &m
	}
	return obs, nil
}

// createMarker creates path exclusively and writes m into it. It reports
// false without error when the marker already exists.
func createMarker(path string, m Marker) (bool, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}

	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(path)
		if werr != nil {
			return false, werr
		}
		return false, cerr
	}
	return true, nil
}

// MarkerInfo describes one marker found next to a document.
type MarkerInfo struct {
	Path string
	Mode Mode
	// Marker is nil when the body could not be decoded.
	Marker   *Marker
	LastSeen time.Time
	Stale    bool
}

// listMarkers returns the exclusive marker (if any) followed by the shared
// markers of target, in directory order.
func listMarkers(target string) ([]string, error) {
	dir, base := filepath.Split(target)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	exclusive := base + ExclusiveSuffix
	sharedPrefix := base + SharedInfix
	for _, e := range entries {
		if e.Name() == exclusive {
			paths = append([]string{filepath.Join(dir, e.Name())}, paths...)
			continue
		}
		if strings.HasPrefix(e.Name(), sharedPrefix) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
