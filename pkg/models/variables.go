package models

// VolumeVariable names the four close-utilization volume quantities tracked per class.
type VolumeVariable int

const (
	WholeStemVolume VolumeVariable = iota
	CloseUtilizationVolume
	CloseUtilizationVolumeLessDecay
	CloseUtilizationVolumeLessDecayLessWastage
)

var VolumeVariables = []VolumeVariable{
	WholeStemVolume,
	CloseUtilizationVolume,
	CloseUtilizationVolumeLessDecay,
	CloseUtilizationVolumeLessDecayLessWastage,
}

func (v VolumeVariable) String() string {
	switch v {
	case WholeStemVolume:
		return "WHOLE_STEM_VOL"
	case CloseUtilizationVolume:
		return "CLOSE_UTIL_VOL"
	case CloseUtilizationVolumeLessDecay:
		return "CLOSE_UTIL_VOL_LESS_DECAY"
	case CloseUtilizationVolumeLessDecayLessWastage:
		return "CLOSE_UTIL_VOL_LESS_DECAY_LESS_WASTAGE"
	}
	return "UNKNOWN"
}

// UtilizationClassVariable names the quantities carried by the small-component
// compatibility variables.
type UtilizationClassVariable int

const (
	BasalAreaVariable UtilizationClassVariable = iota
	QuadMeanDiameterVariable
	LoreyHeightVariable
	WholeStemVolumeVariable
)

var UtilizationClassVariables = []UtilizationClassVariable{
	BasalAreaVariable,
	QuadMeanDiameterVariable,
	LoreyHeightVariable,
	WholeStemVolumeVariable,
}

func (v UtilizationClassVariable) String() string {
	switch v {
	case BasalAreaVariable:
		return "BASAL_AREA"
	case QuadMeanDiameterVariable:
		return "QUAD_MEAN_DIAMETER"
	case LoreyHeightVariable:
		return "LOREY_HEIGHT"
	case WholeStemVolumeVariable:
		return "WHOLE_STEM_VOLUME"
	}
	return "UNKNOWN"
}

// LayerType distinguishes the layers of a polygon.
type LayerType string

const (
	LayerPrimary LayerType = "PRIMARY"
	LayerVeteran LayerType = "VETERAN"
)
