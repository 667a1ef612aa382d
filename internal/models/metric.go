// Package models defines data structures and domain types.
package models

import "strings"

// Kind identifies one metric computation (mean, dtw, a user plugin, ...).
type Kind string

// Built-in metric kinds. The identifiers double as the endpoint path
// segments of the remote statistics service.
const (
	KindMean            Kind = "mean"
	KindMedian          Kind = "median"
	KindVariance        Kind = "variance"
	KindStdDev          Kind = "standard_deviation"
	KindAutocorrelation Kind = "autocorrelation"
	KindCoeffVariation  Kind = "coefficient_of_variation"
	KindIQR             Kind = "iqr"

	KindPearson   Kind = "pearson_correlation"
	KindDTW       Kind = "dtw"
	KindEuclidean Kind = "euclidean_distance"
	KindCosine    Kind = "cosine_similarity"
	KindMAE       Kind = "mae"
	KindRMSE      Kind = "rmse"
)

// pluginKindPrefix marks user-defined plugin kinds.
const pluginKindPrefix = "plugin:"

// Family groups metric kinds by result shape and diagonal convention.
type Family int

const (
	// FamilyStatistic is a single-series scalar (one call per file).
	FamilyStatistic Family = iota
	// FamilyDistance is a pairwise distance/error metric, self-distance 0.
	FamilyDistance
	// FamilySimilarity is a pairwise similarity metric, self-similarity 1.
	FamilySimilarity
	// FamilyCorrelation is pairwise with a server-defined self-value; the
	// client never assumes a diagonal.
	FamilyCorrelation
	// FamilyPlugin is a user-supplied pairwise metric executed remotely.
	FamilyPlugin
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyStatistic:
		return "statistic"
	case FamilyDistance:
		return "distance"
	case FamilySimilarity:
		return "similarity"
	case FamilyCorrelation:
		return "correlation"
	case FamilyPlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// Diagonal returns the client-side self-comparison value for the family,
// or nil when the diagonal is server-defined and must not be assumed.
func (f Family) Diagonal() *float64 {
	switch f {
	case FamilyDistance:
		v := 0.0
		return &v
	case FamilySimilarity:
		v := 1.0
		return &v
	default:
		return nil
	}
}

// KindInfo describes one metric kind and how it is reached on the wire.
type KindInfo struct {
	ID          Kind
	Label       string
	Family      Family
	Endpoint    string // path segment under /api/timeseries/
	ResponseKey string // key of the scalar in the 200 response body
}

// Pairwise reports whether the kind compares two files per call.
func (k KindInfo) Pairwise() bool {
	return k.Family != FamilyStatistic
}

// kinds is the registry of built-in metrics, in display order.
var kinds = []KindInfo{
	{KindMean, "Mean", FamilyStatistic, "mean", "mean"},
	{KindMedian, "Median", FamilyStatistic, "median", "median"},
	{KindVariance, "Variance", FamilyStatistic, "variance", "variance"},
	{KindStdDev, "Std. deviation", FamilyStatistic, "standard_deviation", "standard_deviation"},
	{KindAutocorrelation, "Autocorrelation", FamilyStatistic, "autocorrelation", "autocorrelation"},
	{KindCoeffVariation, "Coeff. of variation", FamilyStatistic, "coefficient_of_variation", "coefficient_of_variation"},
	{KindIQR, "IQR", FamilyStatistic, "iqr", "iqr"},
	{KindPearson, "Pearson correlation", FamilyCorrelation, "pearson_correlation", "pearson_correlation"},
	{KindDTW, "DTW distance", FamilyDistance, "dtw", "dtw_distance"},
	{KindEuclidean, "Euclidean distance", FamilyDistance, "euclidean_distance", "euclidean_distance"},
	{KindCosine, "Cosine similarity", FamilySimilarity, "cosine_similarity", "cosine_similarity"},
	{KindMAE, "MAE", FamilyDistance, "mae", "mae"},
	{KindRMSE, "RMSE", FamilyDistance, "rmse", "rmse"},
}

// expensive kinds are excluded from the default selection for cost reasons.
var expensive = map[Kind]bool{
	KindDTW:             true,
	KindAutocorrelation: true,
}

// Kinds returns the built-in metric registry in display order.
func Kinds() []KindInfo {
	out := make([]KindInfo, len(kinds))
	copy(out, kinds)
	return out
}

// KindByID looks up a built-in or plugin kind by identifier.
func KindByID(id Kind) (KindInfo, bool) {
	for _, k := range kinds {
		if k.ID == id {
			return k, true
		}
	}
	if name, ok := PluginName(id); ok {
		return PluginKind(name), true
	}
	return KindInfo{}, false
}

// IsExpensive reports whether a kind is excluded from the default selection.
func IsExpensive(id Kind) bool {
	return expensive[id]
}

// PluginKind builds the KindInfo for a user-defined plugin by name.
func PluginKind(name string) KindInfo {
	return KindInfo{
		ID:     Kind(pluginKindPrefix + name),
		Label:  name,
		Family: FamilyPlugin,
	}
}

// PluginName extracts the plugin name from a plugin kind identifier.
func PluginName(id Kind) (string, bool) {
	s := string(id)
	if !strings.HasPrefix(s, pluginKindPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, pluginKindPrefix), true
}

// Selection is the user's metric allow-list. A nil selection means "use the
// defaults" (everything except the expensive kinds); an empty non-nil
// selection means the user explicitly hid everything.
type Selection []Kind

// Enabled reports whether a kind should be computed under this selection.
func (s Selection) Enabled(id Kind) bool {
	if s == nil {
		if _, isPlugin := PluginName(id); isPlugin {
			return true
		}
		return !IsExpensive(id)
	}
	for _, k := range s {
		if k == id {
			return true
		}
	}
	return false
}

// WithPlugin returns the selection with a newly defined plugin kind added,
// so new plugins are visible without extra user action. A nil (default)
// selection is left alone: defaults already include plugins.
func (s Selection) WithPlugin(id Kind) Selection {
	if s == nil {
		return nil
	}
	for _, k := range s {
		if k == id {
			return s
		}
	}
	return append(s, id)
}
