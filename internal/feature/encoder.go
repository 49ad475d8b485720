package feature

import "sort"

// Width is the number of columns in an encoded feature row.
const Width = 11

// Encoder maps categorical vector fields to stable integer codes. Fitted on
// the training set and carried with the trained model so live encoding
// matches training encoding. Code 0 is reserved for unseen categories.
type Encoder struct {
	Roles   map[string]int `json:"roles"`
	Devices map[string]int `json:"devices"`
	Actions map[string]int `json:"actions"`
	Buckets map[string]int `json:"buckets"`
}

// FitEncoder builds an encoder from the training vectors. Categories are
// coded in sorted order for run-to-run determinism.
func FitEncoder(vectors []Vector) *Encoder {
	roles := map[string]struct{}{}
	devices := map[string]struct{}{}
	actions := map[string]struct{}{}
	buckets := map[string]struct{}{}
	for _, v := range vectors {
		roles[v.Role] = struct{}{}
		devices[v.Device] = struct{}{}
		actions[v.Action] = struct{}{}
		buckets[v.SessionBucket] = struct{}{}
	}
	return &Encoder{
		Roles:   codes(roles),
		Devices: codes(devices),
		Actions: codes(actions),
		Buckets: codes(buckets),
	}
}

func codes(set map[string]struct{}) map[string]int {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	coded := make(map[string]int, len(keys))
	for i, k := range keys {
		coded[k] = i + 1
	}
	return coded
}

// Encode transforms a vector into a numeric feature row.
func (e *Encoder) Encode(v Vector) []float64 {
	return []float64{
		float64(e.Roles[v.Role]),
		float64(e.Devices[v.Device]),
		float64(e.Actions[v.Action]),
		float64(v.Hour),
		float64(v.DayOfWeek),
		boolToFloat(v.IsWeekend),
		boolToFloat(v.IsBusinessHours),
		boolToFloat(v.IsSensitiveAction),
		boolToFloat(v.IsFailedAction),
		v.SessionMinutes,
		float64(e.Buckets[v.SessionBucket]),
	}
}

// EncodeAll transforms a batch of vectors into a feature matrix.
func (e *Encoder) EncodeAll(vectors []Vector) [][]float64 {
	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		rows[i] = e.Encode(v)
	}
	return rows
}
