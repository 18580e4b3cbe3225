package wqp

// WQP CSV column names.
const (
	colActivityStartDate     = "ActivityStartDate"
	colActivityStartTime     = "ActivityStartTime/Time"
	colActivityStartDateTime = "ActivityStartDateTime"
	colCharacteristicName    = "CharacteristicName"
	colResultMeasureValue    = "ResultMeasureValue"
	colMeasureUnitCode       = "ResultMeasure/MeasureUnitCode"
	colMonitoringLocationID  = "MonitoringLocationIdentifier"
	colOrganizationName      = "OrganizationFormalName"
	colOrganizationID        = "OrganizationIdentifier"
	colSampleMethod          = "SampleCollectionMethod/MethodName"
	colAnalyticalMethod      = "ResultAnalyticalMethod/MethodName"
	colParticleSizeBasis     = "ResultParticleSizeBasisText"
	colActivityMediaName     = "ActivityMediaName"
	colSampleDepth           = "ActivityDepthHeightMeasure/MeasureValue"
	colSampleDepthUnit       = "ActivityDepthHeightMeasure/MeasureUnitCode"
	colSampleFraction        = "ResultSampleFractionText"
	colResultStatus          = "ResultStatusIdentifier"

	colLocationName     = "MonitoringLocationName"
	colDrainageArea     = "DrainageAreaMeasure/MeasureValue"
	colDrainageAreaUnit = "DrainageAreaMeasure/MeasureUnitCode"
	colLatitude         = "LatitudeMeasure"
	colLongitude        = "LongitudeMeasure"
)

// ActivityStartDateTime is only present in newer WQP profiles, so it is read
// when available but not required.
var resultColumns = []string{
	colActivityStartDate,
	colActivityStartTime,
	colCharacteristicName,
	colResultMeasureValue,
	colMeasureUnitCode,
	colMonitoringLocationID,
	colOrganizationName,
	colOrganizationID,
	colSampleMethod,
	colAnalyticalMethod,
	colParticleSizeBasis,
	colActivityMediaName,
	colSampleDepth,
	colSampleDepthUnit,
	colSampleFraction,
	colResultStatus,
}

var stationColumns = []string{
	colMonitoringLocationID,
	colLocationName,
	colDrainageArea,
	colDrainageAreaUnit,
	colLatitude,
	colLongitude,
}
