package types

// DICOM Application Context UID
// The Application Context defines the DICOM application-level message exchange rules.
const ApplicationContextUID = "1.2.840.10008.3.1.1.1"

// DICOM SOP Class UIDs as defined in DICOM Part 4, Annex B
// https://dicom.nema.org/medical/dicom/current/output/chtml/part04/sect_B.5.html

// Verification Service
const (
	VerificationSOPClass = "1.2.840.10008.1.1"
)

// Storage Service - Image Storage SOP Classes
const (
	// Computed Radiography
	ComputedRadiographyImageStorage = "1.2.840.10008.5.1.4.1.1.1"

	// Digital Radiography
	DigitalXRayImageStorageForPresentation            = "1.2.840.10008.5.1.4.1.1.1.1"
	DigitalXRayImageStorageForProcessing              = "1.2.840.10008.5.1.4.1.1.1.1.1"
	DigitalMammographyXRayImageStorageForPresentation = "1.2.840.10008.5.1.4.1.1.1.2"
	DigitalMammographyXRayImageStorageForProcessing   = "1.2.840.10008.5.1.4.1.1.1.2.1"
	DigitalIntraOralXRayImageStorageForPresentation   = "1.2.840.10008.5.1.4.1.1.1.3"
	DigitalIntraOralXRayImageStorageForProcessing     = "1.2.840.10008.5.1.4.1.1.1.3.1"

	// Computed Tomography
	CTImageStorage                        = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorage                = "1.2.840.10008.5.1.4.1.1.2.1"
	LegacyConvertedEnhancedCTImageStorage = "1.2.840.10008.5.1.4.1.1.2.2"

	// Ultrasound
	UltrasoundMultiFrameImageStorage = "1.2.840.10008.5.1.4.1.1.3.1"
	UltrasoundImageStorage           = "1.2.840.10008.5.1.4.1.1.6.1"
	EnhancedUSVolumeStorage          = "1.2.840.10008.5.1.4.1.1.6.2"

	// Magnetic Resonance
	MRImageStorage                        = "1.2.840.10008.5.1.4.1.1.4"
	EnhancedMRImageStorage                = "1.2.840.10008.5.1.4.1.1.4.1"
	MRSpectroscopyStorage                 = "1.2.840.10008.5.1.4.1.1.4.2"
	EnhancedMRColorImageStorage           = "1.2.840.10008.5.1.4.1.1.4.3"
	LegacyConvertedEnhancedMRImageStorage = "1.2.840.10008.5.1.4.1.1.4.4"

	// Nuclear Medicine
	NuclearMedicineImageStorage = "1.2.840.10008.5.1.4.1.1.20"

	// Secondary Capture and Multi-frame
	SecondaryCaptureImageStorage                        = "1.2.840.10008.5.1.4.1.1.7"
	MultiFrameGrayscaleByteSecondaryCaptureImageStorage = "1.2.840.10008.5.1.4.1.1.7.1"
	MultiFrameGrayscaleWordSecondaryCaptureImageStorage = "1.2.840.10008.5.1.4.1.1.7.2"
	MultiFrameTrueColorSecondaryCaptureImageStorage     = "1.2.840.10008.5.1.4.1.1.7.3"
	MultiFrameSingleBitSecondaryCaptureImageStorage     = "1.2.840.10008.5.1.4.1.1.7.4"

	// X-Ray Angiographic
	XRayAngiographicImageStorage      = "1.2.840.10008.5.1.4.1.1.12.1"
	EnhancedXAImageStorage            = "1.2.840.10008.5.1.4.1.1.12.1.1"
	XRayRadiofluoroscopicImageStorage = "1.2.840.10008.5.1.4.1.1.12.2"
	EnhancedXRFImageStorage           = "1.2.840.10008.5.1.4.1.1.12.2.1"

	// X-Ray 3D
	XRay3DAngiographicImageStorage                  = "1.2.840.10008.5.1.4.1.1.13.1.1"
	XRay3DCraniofacialImageStorage                  = "1.2.840.10008.5.1.4.1.1.13.1.2"
	BreastTomosynthesisImageStorage                 = "1.2.840.10008.5.1.4.1.1.13.1.3"
	BreastProjectionXRayImageStorageForPresentation = "1.2.840.10008.5.1.4.1.1.13.1.4"
	BreastProjectionXRayImageStorageForProcessing   = "1.2.840.10008.5.1.4.1.1.13.1.5"

	// Intravascular Optical Coherence Tomography
	IntravascularOpticalCoherenceTomographyImageStorageForPresentation = "1.2.840.10008.5.1.4.1.1.14.1"
	IntravascularOpticalCoherenceTomographyImageStorageForProcessing   = "1.2.840.10008.5.1.4.1.1.14.2"

	// Positron Emission Tomography
	PETImageStorage                        = "1.2.840.10008.5.1.4.1.1.128"
	EnhancedPETImageStorage                = "1.2.840.10008.5.1.4.1.1.130"
	LegacyConvertedEnhancedPETImageStorage = "1.2.840.10008.5.1.4.1.1.128.1"

	// RT (Radiation Therapy)
	RTImageStorage                   = "1.2.840.10008.5.1.4.1.1.481.1"
	RTDoseStorage                    = "1.2.840.10008.5.1.4.1.1.481.2"
	RTStructureSetStorage            = "1.2.840.10008.5.1.4.1.1.481.3"
	RTBeamsTreatmentRecordStorage    = "1.2.840.10008.5.1.4.1.1.481.4"
	RTPlanStorage                    = "1.2.840.10008.5.1.4.1.1.481.5"
	RTBrachyTreatmentRecordStorage   = "1.2.840.10008.5.1.4.1.1.481.6"
	RTTreatmentSummaryRecordStorage  = "1.2.840.10008.5.1.4.1.1.481.7"
	RTIonPlanStorage                 = "1.2.840.10008.5.1.4.1.1.481.8"
	RTIonBeamsTreatmentRecordStorage = "1.2.840.10008.5.1.4.1.1.481.9"

	// Visible Light
	VLEndoscopicImageStorage                  = "1.2.840.10008.5.1.4.1.1.77.1.1"
	VLMicroscopicImageStorage                 = "1.2.840.10008.5.1.4.1.1.77.1.2"
	VLSlideCoordinatesMicroscopicImageStorage = "1.2.840.10008.5.1.4.1.1.77.1.3"
	VLPhotographicImageStorage                = "1.2.840.10008.5.1.4.1.1.77.1.4"
	VLWholeSlideMicroscopyImageStorage        = "1.2.840.10008.5.1.4.1.1.77.1.6"

	// Ophthalmic
	OphthalmicPhotography8BitImageStorage                             = "1.2.840.10008.5.1.4.1.1.77.1.5.1"
	OphthalmicPhotography16BitImageStorage                            = "1.2.840.10008.5.1.4.1.1.77.1.5.2"
	OphthalmicTomographyImageStorage                                  = "1.2.840.10008.5.1.4.1.1.77.1.5.4"
	WideFieldOphthalmicPhotographyStereographicProjectionImageStorage = "1.2.840.10008.5.1.4.1.1.77.1.5.6"
	WideFieldOphthalmicPhotography3DCoordinatesImageStorage           = "1.2.840.10008.5.1.4.1.1.77.1.5.7"
	OphthalmicOpticalCoherenceTomographyEnFaceImageStorage            = "1.2.840.10008.5.1.4.1.1.77.1.5.8"
	OphthalmicOpticalCoherenceTomographyBscanVolumeAnalysisStorage    = "1.2.840.10008.5.1.4.1.1.77.1.5.9"

	// Encapsulated Documents
	EncapsulatedPDFStorage = "1.2.840.10008.5.1.4.1.1.104.1"
	EncapsulatedCDAStorage = "1.2.840.10008.5.1.4.1.1.104.2"
	EncapsulatedSTLStorage = "1.2.840.10008.5.1.4.1.1.104.3"
	EncapsulatedOBJStorage = "1.2.840.10008.5.1.4.1.1.104.4"
	EncapsulatedMTLStorage = "1.2.840.10008.5.1.4.1.1.104.5"
)

// Query/Retrieve Service SOP Classes
const (
	// Study Root Query/Retrieve
	StudyRootQueryRetrieveInformationModelFind = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootQueryRetrieveInformationModelMove = "1.2.840.10008.5.1.4.1.2.2.2"
	StudyRootQueryRetrieveInformationModelGet  = "1.2.840.10008.5.1.4.1.2.2.3"

	// Patient Root Query/Retrieve
	PatientRootQueryRetrieveInformationModelFind = "1.2.840.10008.5.1.4.1.2.1.1"
	PatientRootQueryRetrieveInformationModelMove = "1.2.840.10008.5.1.4.1.2.1.2"
	PatientRootQueryRetrieveInformationModelGet  = "1.2.840.10008.5.1.4.1.2.1.3"

	// Patient/Study Only Query/Retrieve
	PatientStudyOnlyQueryRetrieveInformationModelFind = "1.2.840.10008.5.1.4.1.2.3.1"
	PatientStudyOnlyQueryRetrieveInformationModelMove = "1.2.840.10008.5.1.4.1.2.3.2"
	PatientStudyOnlyQueryRetrieveInformationModelGet  = "1.2.840.10008.5.1.4.1.2.3.3"

	// Composite Instance Root Retrieve
	CompositeInstanceRootRetrieveMove = "1.2.840.10008.5.1.4.1.2.4.2"
	CompositeInstanceRootRetrieveGet  = "1.2.840.10008.5.1.4.1.2.4.3"

	// Composite Instance Retrieve Without Bulk Data
	CompositeInstanceRetrieveWithoutBulkDataGet = "1.2.840.10008.5.1.4.1.2.5.3"

	// Defined Procedure Protocol Query/Retrieve
	DefinedProcedureProtocolInformationModelFind = "1.2.840.10008.5.1.4.20.1"
	DefinedProcedureProtocolInformationModelMove = "1.2.840.10008.5.1.4.20.2"
	DefinedProcedureProtocolInformationModelGet  = "1.2.840.10008.5.1.4.20.3"
)

// Worklist Management Service SOP Classes
const (
	ModalityWorklistInformationModelFind         = "1.2.840.10008.5.1.4.31"
	GeneralPurposeWorklistInformationModelFind   = "1.2.840.10008.5.1.4.32.1"
	GeneralPurposeScheduledProcedureStepSOPClass = "1.2.840.10008.5.1.4.32.2"
	GeneralPurposePerformedProcedureStepSOPClass = "1.2.840.10008.5.1.4.32.3"
)

// Modality Performed Procedure Step
const (
	ModalityPerformedProcedureStepSOPClass             = "1.2.840.10008.3.1.2.3.3"
	ModalityPerformedProcedureStepRetrieveSOPClass     = "1.2.840.10008.3.1.2.3.4"
	ModalityPerformedProcedureStepNotificationSOPClass = "1.2.840.10008.3.1.2.3.5"
)

// Storage Commitment
const (
	StorageCommitmentPushModelSOPClass = "1.2.840.10008.1.20.1"
	StorageCommitmentPullModelSOPClass = "1.2.840.10008.1.20.2"

	// StorageCommitmentPushModelSOPInstance is the single, fixed well-known
	// SOP Instance UID both N-ACTION-RQ and N-EVENT-REPORT-RQ carry as
	// RequestedSOPInstanceUID/AffectedSOPInstanceUID for the push model.
	StorageCommitmentPushModelSOPInstance = "1.2.840.10008.1.20.1.1"
)

// Unified Procedure Step
const (
	UnifiedProcedureStepPushSOPClass  = "1.2.840.10008.5.1.4.34.6.1"
	UnifiedProcedureStepWatchSOPClass = "1.2.840.10008.5.1.4.34.6.2"
	UnifiedProcedureStepPullSOPClass  = "1.2.840.10008.5.1.4.34.6.3"
	UnifiedProcedureStepEventSOPClass = "1.2.840.10008.5.1.4.34.6.4"
	UnifiedProcedureStepQuerySOPClass = "1.2.840.10008.5.1.4.34.6.5"
)

// Hanging Protocol
const (
	HangingProtocolStorage              = "1.2.840.10008.5.1.4.38.1"
	HangingProtocolInformationModelFind = "1.2.840.10008.5.1.4.38.2"
	HangingProtocolInformationModelMove = "1.2.840.10008.5.1.4.38.3"
	HangingProtocolInformationModelGet  = "1.2.840.10008.5.1.4.38.4"
)

// Color Palette
const (
	ColorPaletteStorage              = "1.2.840.10008.5.1.4.39.1"
	ColorPaletteInformationModelFind = "1.2.840.10008.5.1.4.39.2"
	ColorPaletteInformationModelMove = "1.2.840.10008.5.1.4.39.3"
	ColorPaletteInformationModelGet  = "1.2.840.10008.5.1.4.39.4"
)

// Implant Template
const (
	GenericImplantTemplateStorage               = "1.2.840.10008.5.1.4.43.1"
	GenericImplantTemplateInformationModelFind  = "1.2.840.10008.5.1.4.43.2"
	GenericImplantTemplateInformationModelMove  = "1.2.840.10008.5.1.4.43.3"
	GenericImplantTemplateInformationModelGet   = "1.2.840.10008.5.1.4.43.4"
	ImplantAssemblyTemplateStorage              = "1.2.840.10008.5.1.4.44.1"
	ImplantAssemblyTemplateInformationModelFind = "1.2.840.10008.5.1.4.44.2"
	ImplantAssemblyTemplateInformationModelMove = "1.2.840.10008.5.1.4.44.3"
	ImplantAssemblyTemplateInformationModelGet  = "1.2.840.10008.5.1.4.44.4"
	ImplantTemplateGroupStorage                 = "1.2.840.10008.5.1.4.45.1"
	ImplantTemplateGroupInformationModelFind    = "1.2.840.10008.5.1.4.45.2"
	ImplantTemplateGroupInformationModelMove    = "1.2.840.10008.5.1.4.45.3"
	ImplantTemplateGroupInformationModelGet     = "1.2.840.10008.5.1.4.45.4"
)

// SOPClassInfo provides human-readable information about a SOP Class UID
type SOPClassInfo struct {
	UID         string
	Name        string
	Category    string
	Description string
}

// GetSOPClassInfo returns information about a SOP Class UID
func GetSOPClassInfo(uid string) *SOPClassInfo {
	info, ok := sopClassRegistry[uid]
	if !ok {
		return &SOPClassInfo{
			UID:      uid,
			Name:     "Unknown",
			Category: "Unknown",
		}
	}
	return &info
}

// IsStorageSOPClass returns true if the UID is a storage SOP class
func IsStorageSOPClass(uid string) bool {
	info := GetSOPClassInfo(uid)
	return info.Category == "Storage"
}

// IsQueryRetrieveSOPClass returns true if the UID is a query/retrieve SOP class
func IsQueryRetrieveSOPClass(uid string) bool {
	info := GetSOPClassInfo(uid)
	return info.Category == "Query/Retrieve"
}

// sopClassRegistry maps SOP Class UIDs to their information
var sopClassRegistry = map[string]SOPClassInfo{
	// Verification
	VerificationSOPClass: {
		UID:      VerificationSOPClass,
		Name:     "Verification SOP Class",
		Category: "Verification",
	},

	// Computed Radiography
	ComputedRadiographyImageStorage: {
		UID:      ComputedRadiographyImageStorage,
		Name:     "Computed Radiography Image Storage",
		Category: "Storage",
	},

	// CT
	CTImageStorage: {
		UID:      CTImageStorage,
		Name:     "CT Image Storage",
		Category: "Storage",
	},
	EnhancedCTImageStorage: {
		UID:      EnhancedCTImageStorage,
		Name:     "Enhanced CT Image Storage",
		Category: "Storage",
	},

	// MR
	MRImageStorage: {
		UID:      MRImageStorage,
		Name:     "MR Image Storage",
		Category: "Storage",
	},
	EnhancedMRImageStorage: {
		UID:      EnhancedMRImageStorage,
		Name:     "Enhanced MR Image Storage",
		Category: "Storage",
	},

	// Ultrasound
	UltrasoundImageStorage: {
		UID:      UltrasoundImageStorage,
		Name:     "Ultrasound Image Storage",
		Category: "Storage",
	},
	UltrasoundMultiFrameImageStorage: {
		UID:      UltrasoundMultiFrameImageStorage,
		Name:     "Ultrasound Multi-frame Image Storage",
		Category: "Storage",
	},

	// Secondary Capture
	SecondaryCaptureImageStorage: {
		UID:      SecondaryCaptureImageStorage,
		Name:     "Secondary Capture Image Storage",
		Category: "Storage",
	},

	// Nuclear Medicine
	NuclearMedicineImageStorage: {
		UID:      NuclearMedicineImageStorage,
		Name:     "Nuclear Medicine Image Storage",
		Category: "Storage",
	},

	// PET
	PETImageStorage: {
		UID:      PETImageStorage,
		Name:     "PET Image Storage",
		Category: "Storage",
	},
	EnhancedPETImageStorage: {
		UID:      EnhancedPETImageStorage,
		Name:     "Enhanced PET Image Storage",
		Category: "Storage",
	},

	// RT
	RTImageStorage: {
		UID:      RTImageStorage,
		Name:     "RT Image Storage",
		Category: "Storage",
	},
	RTDoseStorage: {
		UID:      RTDoseStorage,
		Name:     "RT Dose Storage",
		Category: "Storage",
	},
	RTStructureSetStorage: {
		UID:      RTStructureSetStorage,
		Name:     "RT Structure Set Storage",
		Category: "Storage",
	},
	RTPlanStorage: {
		UID:      RTPlanStorage,
		Name:     "RT Plan Storage",
		Category: "Storage",
	},

	// Query/Retrieve - Study Root
	StudyRootQueryRetrieveInformationModelFind: {
		UID:      StudyRootQueryRetrieveInformationModelFind,
		Name:     "Study Root Query/Retrieve - FIND",
		Category: "Query/Retrieve",
	},
	StudyRootQueryRetrieveInformationModelMove: {
		UID:      StudyRootQueryRetrieveInformationModelMove,
		Name:     "Study Root Query/Retrieve - MOVE",
		Category: "Query/Retrieve",
	},
	StudyRootQueryRetrieveInformationModelGet: {
		UID:      StudyRootQueryRetrieveInformationModelGet,
		Name:     "Study Root Query/Retrieve - GET",
		Category: "Query/Retrieve",
	},

	// Query/Retrieve - Patient Root
	PatientRootQueryRetrieveInformationModelFind: {
		UID:      PatientRootQueryRetrieveInformationModelFind,
		Name:     "Patient Root Query/Retrieve - FIND",
		Category: "Query/Retrieve",
	},
	PatientRootQueryRetrieveInformationModelMove: {
		UID:      PatientRootQueryRetrieveInformationModelMove,
		Name:     "Patient Root Query/Retrieve - MOVE",
		Category: "Query/Retrieve",
	},
	PatientRootQueryRetrieveInformationModelGet: {
		UID:      PatientRootQueryRetrieveInformationModelGet,
		Name:     "Patient Root Query/Retrieve - GET",
		Category: "Query/Retrieve",
	},

	// Worklist
	ModalityWorklistInformationModelFind: {
		UID:      ModalityWorklistInformationModelFind,
		Name:     "Modality Worklist - FIND",
		Category: "Worklist",
	},

	// MPPS
	ModalityPerformedProcedureStepSOPClass: {
		UID:      ModalityPerformedProcedureStepSOPClass,
		Name:     "Modality Performed Procedure Step",
		Category: "MPPS",
	},

	// Storage Commitment
	StorageCommitmentPushModelSOPClass: {
		UID:      StorageCommitmentPushModelSOPClass,
		Name:     "Storage Commitment Push Model",
		Category: "Storage Commitment",
	},

	// Encapsulated Documents
	EncapsulatedPDFStorage: {
		UID:      EncapsulatedPDFStorage,
		Name:     "Encapsulated PDF Storage",
		Category: "Storage",
	},
	EncapsulatedCDAStorage: {
		UID:      EncapsulatedCDAStorage,
		Name:     "Encapsulated CDA Storage",
		Category: "Storage",
	},
	// Storage (registry completion)
	DigitalXRayImageStorageForPresentation: {
		UID:      DigitalXRayImageStorageForPresentation,
		Name:     "Digital X-Ray Image Storage For Presentation",
		Category: "Storage",
	},
	DigitalXRayImageStorageForProcessing: {
		UID:      DigitalXRayImageStorageForProcessing,
		Name:     "Digital X-Ray Image Storage For Processing",
		Category: "Storage",
	},
	DigitalMammographyXRayImageStorageForPresentation: {
		UID:      DigitalMammographyXRayImageStorageForPresentation,
		Name:     "Digital Mammography X-Ray Image Storage For Presentation",
		Category: "Storage",
	},
	DigitalMammographyXRayImageStorageForProcessing: {
		UID:      DigitalMammographyXRayImageStorageForProcessing,
		Name:     "Digital Mammography X-Ray Image Storage For Processing",
		Category: "Storage",
	},
	DigitalIntraOralXRayImageStorageForPresentation: {
		UID:      DigitalIntraOralXRayImageStorageForPresentation,
		Name:     "Digital Intra Oral X-Ray Image Storage For Presentation",
		Category: "Storage",
	},
	DigitalIntraOralXRayImageStorageForProcessing: {
		UID:      DigitalIntraOralXRayImageStorageForProcessing,
		Name:     "Digital Intra Oral X-Ray Image Storage For Processing",
		Category: "Storage",
	},
	LegacyConvertedEnhancedCTImageStorage: {
		UID:      LegacyConvertedEnhancedCTImageStorage,
		Name:     "Legacy Converted Enhanced C T Image Storage",
		Category: "Storage",
	},
	LegacyConvertedEnhancedMRImageStorage: {
		UID:      LegacyConvertedEnhancedMRImageStorage,
		Name:     "Legacy Converted Enhanced M R Image Storage",
		Category: "Storage",
	},
	LegacyConvertedEnhancedPETImageStorage: {
		UID:      LegacyConvertedEnhancedPETImageStorage,
		Name:     "Legacy Converted Enhanced P E T Image Storage",
		Category: "Storage",
	},
	EnhancedMRColorImageStorage: {
		UID:      EnhancedMRColorImageStorage,
		Name:     "Enhanced M R Color Image Storage",
		Category: "Storage",
	},
	MRSpectroscopyStorage: {
		UID:      MRSpectroscopyStorage,
		Name:     "M R Spectroscopy Storage",
		Category: "Storage",
	},
	EnhancedUSVolumeStorage: {
		UID:      EnhancedUSVolumeStorage,
		Name:     "Enhanced U S Volume Storage",
		Category: "Storage",
	},
	MultiFrameGrayscaleByteSecondaryCaptureImageStorage: {
		UID:      MultiFrameGrayscaleByteSecondaryCaptureImageStorage,
		Name:     "Multi Frame Grayscale Byte Secondary Capture Image Storage",
		Category: "Storage",
	},
	MultiFrameGrayscaleWordSecondaryCaptureImageStorage: {
		UID:      MultiFrameGrayscaleWordSecondaryCaptureImageStorage,
		Name:     "Multi Frame Grayscale Word Secondary Capture Image Storage",
		Category: "Storage",
	},
	MultiFrameTrueColorSecondaryCaptureImageStorage: {
		UID:      MultiFrameTrueColorSecondaryCaptureImageStorage,
		Name:     "Multi Frame True Color Secondary Capture Image Storage",
		Category: "Storage",
	},
	MultiFrameSingleBitSecondaryCaptureImageStorage: {
		UID:      MultiFrameSingleBitSecondaryCaptureImageStorage,
		Name:     "Multi Frame Single Bit Secondary Capture Image Storage",
		Category: "Storage",
	},
	XRayAngiographicImageStorage: {
		UID:      XRayAngiographicImageStorage,
		Name:     "X-Ray Angiographic Image Storage",
		Category: "Storage",
	},
	EnhancedXAImageStorage: {
		UID:      EnhancedXAImageStorage,
		Name:     "Enhanced X A Image Storage",
		Category: "Storage",
	},
	XRayRadiofluoroscopicImageStorage: {
		UID:      XRayRadiofluoroscopicImageStorage,
		Name:     "X-Ray Radiofluoroscopic Image Storage",
		Category: "Storage",
	},
	EnhancedXRFImageStorage: {
		UID:      EnhancedXRFImageStorage,
		Name:     "Enhanced X R F Image Storage",
		Category: "Storage",
	},
	XRay3DAngiographicImageStorage: {
		UID:      XRay3DAngiographicImageStorage,
		Name:     "X-Ray3 D Angiographic Image Storage",
		Category: "Storage",
	},
	XRay3DCraniofacialImageStorage: {
		UID:      XRay3DCraniofacialImageStorage,
		Name:     "X-Ray3 D Craniofacial Image Storage",
		Category: "Storage",
	},
	BreastTomosynthesisImageStorage: {
		UID:      BreastTomosynthesisImageStorage,
		Name:     "Breast Tomosynthesis Image Storage",
		Category: "Storage",
	},
	BreastProjectionXRayImageStorageForPresentation: {
		UID:      BreastProjectionXRayImageStorageForPresentation,
		Name:     "Breast Projection X-Ray Image Storage For Presentation",
		Category: "Storage",
	},
	BreastProjectionXRayImageStorageForProcessing: {
		UID:      BreastProjectionXRayImageStorageForProcessing,
		Name:     "Breast Projection X-Ray Image Storage For Processing",
		Category: "Storage",
	},
	IntravascularOpticalCoherenceTomographyImageStorageForPresentation: {
		UID:      IntravascularOpticalCoherenceTomographyImageStorageForPresentation,
		Name:     "Intravascular Optical Coherence Tomography Image Storage For Presentation",
		Category: "Storage",
	},
	IntravascularOpticalCoherenceTomographyImageStorageForProcessing: {
		UID:      IntravascularOpticalCoherenceTomographyImageStorageForProcessing,
		Name:     "Intravascular Optical Coherence Tomography Image Storage For Processing",
		Category: "Storage",
	},
	VLEndoscopicImageStorage: {
		UID:      VLEndoscopicImageStorage,
		Name:     "V L Endoscopic Image Storage",
		Category: "Storage",
	},
	VLMicroscopicImageStorage: {
		UID:      VLMicroscopicImageStorage,
		Name:     "V L Microscopic Image Storage",
		Category: "Storage",
	},
	VLSlideCoordinatesMicroscopicImageStorage: {
		UID:      VLSlideCoordinatesMicroscopicImageStorage,
		Name:     "V L Slide Coordinates Microscopic Image Storage",
		Category: "Storage",
	},
	VLPhotographicImageStorage: {
		UID:      VLPhotographicImageStorage,
		Name:     "V L Photographic Image Storage",
		Category: "Storage",
	},
	VLWholeSlideMicroscopyImageStorage: {
		UID:      VLWholeSlideMicroscopyImageStorage,
		Name:     "V L Whole Slide Microscopy Image Storage",
		Category: "Storage",
	},
	OphthalmicPhotography8BitImageStorage: {
		UID:      OphthalmicPhotography8BitImageStorage,
		Name:     "Ophthalmic Photography8 Bit Image Storage",
		Category: "Storage",
	},
	OphthalmicPhotography16BitImageStorage: {
		UID:      OphthalmicPhotography16BitImageStorage,
		Name:     "Ophthalmic Photography16 Bit Image Storage",
		Category: "Storage",
	},
	OphthalmicTomographyImageStorage: {
		UID:      OphthalmicTomographyImageStorage,
		Name:     "Ophthalmic Tomography Image Storage",
		Category: "Storage",
	},
	OphthalmicOpticalCoherenceTomographyEnFaceImageStorage: {
		UID:      OphthalmicOpticalCoherenceTomographyEnFaceImageStorage,
		Name:     "Ophthalmic Optical Coherence Tomography En Face Image Storage",
		Category: "Storage",
	},
	OphthalmicOpticalCoherenceTomographyBscanVolumeAnalysisStorage: {
		UID:      OphthalmicOpticalCoherenceTomographyBscanVolumeAnalysisStorage,
		Name:     "Ophthalmic Optical Coherence Tomography Bscan Volume Analysis Storage",
		Category: "Storage",
	},
	WideFieldOphthalmicPhotographyStereographicProjectionImageStorage: {
		UID:      WideFieldOphthalmicPhotographyStereographicProjectionImageStorage,
		Name:     "Wide Field Ophthalmic Photography Stereographic Projection Image Storage",
		Category: "Storage",
	},
	WideFieldOphthalmicPhotography3DCoordinatesImageStorage: {
		UID:      WideFieldOphthalmicPhotography3DCoordinatesImageStorage,
		Name:     "Wide Field Ophthalmic Photography3 D Coordinates Image Storage",
		Category: "Storage",
	},
	RTBeamsTreatmentRecordStorage: {
		UID:      RTBeamsTreatmentRecordStorage,
		Name:     "RT Beams Treatment Record Storage",
		Category: "Storage",
	},
	RTBrachyTreatmentRecordStorage: {
		UID:      RTBrachyTreatmentRecordStorage,
		Name:     "RT Brachy Treatment Record Storage",
		Category: "Storage",
	},
	RTIonBeamsTreatmentRecordStorage: {
		UID:      RTIonBeamsTreatmentRecordStorage,
		Name:     "RT Ion Beams Treatment Record Storage",
		Category: "Storage",
	},
	RTIonPlanStorage: {
		UID:      RTIonPlanStorage,
		Name:     "RT Ion Plan Storage",
		Category: "Storage",
	},
	RTTreatmentSummaryRecordStorage: {
		UID:      RTTreatmentSummaryRecordStorage,
		Name:     "RT Treatment Summary Record Storage",
		Category: "Storage",
	},
	EncapsulatedSTLStorage: {
		UID:      EncapsulatedSTLStorage,
		Name:     "Encapsulated S T L Storage",
		Category: "Storage",
	},
	EncapsulatedOBJStorage: {
		UID:      EncapsulatedOBJStorage,
		Name:     "Encapsulated O B J Storage",
		Category: "Storage",
	},
	EncapsulatedMTLStorage: {
		UID:      EncapsulatedMTLStorage,
		Name:     "Encapsulated M T L Storage",
		Category: "Storage",
	},
	GenericImplantTemplateStorage: {
		UID:      GenericImplantTemplateStorage,
		Name:     "Generic Implant Template Storage",
		Category: "Storage",
	},
	ImplantAssemblyTemplateStorage: {
		UID:      ImplantAssemblyTemplateStorage,
		Name:     "Implant Assembly Template Storage",
		Category: "Storage",
	},
	ImplantTemplateGroupStorage: {
		UID:      ImplantTemplateGroupStorage,
		Name:     "Implant Template Group Storage",
		Category: "Storage",
	},
	HangingProtocolStorage: {
		UID:      HangingProtocolStorage,
		Name:     "Hanging Protocol Storage",
		Category: "Storage",
	},
	ColorPaletteStorage: {
		UID:      ColorPaletteStorage,
		Name:     "Color Palette Storage",
		Category: "Storage",
	},
	// Query/Retrieve (registry completion)
	PatientStudyOnlyQueryRetrieveInformationModelFind: {
		UID:      PatientStudyOnlyQueryRetrieveInformationModelFind,
		Name:     "Patient Study Only Query Retrieve Information Model Find",
		Category: "Query/Retrieve",
	},
	PatientStudyOnlyQueryRetrieveInformationModelMove: {
		UID:      PatientStudyOnlyQueryRetrieveInformationModelMove,
		Name:     "Patient Study Only Query Retrieve Information Model Move",
		Category: "Query/Retrieve",
	},
	PatientStudyOnlyQueryRetrieveInformationModelGet: {
		UID:      PatientStudyOnlyQueryRetrieveInformationModelGet,
		Name:     "Patient Study Only Query Retrieve Information Model Get",
		Category: "Query/Retrieve",
	},
	CompositeInstanceRootRetrieveMove: {
		UID:      CompositeInstanceRootRetrieveMove,
		Name:     "Composite Instance Root Retrieve Move",
		Category: "Query/Retrieve",
	},
	CompositeInstanceRootRetrieveGet: {
		UID:      CompositeInstanceRootRetrieveGet,
		Name:     "Composite Instance Root Retrieve Get",
		Category: "Query/Retrieve",
	},
	CompositeInstanceRetrieveWithoutBulkDataGet: {
		UID:      CompositeInstanceRetrieveWithoutBulkDataGet,
		Name:     "Composite Instance Retrieve Without Bulk Data Get",
		Category: "Query/Retrieve",
	},
	DefinedProcedureProtocolInformationModelFind: {
		UID:      DefinedProcedureProtocolInformationModelFind,
		Name:     "Defined Procedure Protocol Information Model Find",
		Category: "Query/Retrieve",
	},
	DefinedProcedureProtocolInformationModelMove: {
		UID:      DefinedProcedureProtocolInformationModelMove,
		Name:     "Defined Procedure Protocol Information Model Move",
		Category: "Query/Retrieve",
	},
	DefinedProcedureProtocolInformationModelGet: {
		UID:      DefinedProcedureProtocolInformationModelGet,
		Name:     "Defined Procedure Protocol Information Model Get",
		Category: "Query/Retrieve",
	},
	HangingProtocolInformationModelFind: {
		UID:      HangingProtocolInformationModelFind,
		Name:     "Hanging Protocol Information Model Find",
		Category: "Query/Retrieve",
	},
	HangingProtocolInformationModelMove: {
		UID:      HangingProtocolInformationModelMove,
		Name:     "Hanging Protocol Information Model Move",
		Category: "Query/Retrieve",
	},
	HangingProtocolInformationModelGet: {
		UID:      HangingProtocolInformationModelGet,
		Name:     "Hanging Protocol Information Model Get",
		Category: "Query/Retrieve",
	},
	ColorPaletteInformationModelFind: {
		UID:      ColorPaletteInformationModelFind,
		Name:     "Color Palette Information Model Find",
		Category: "Query/Retrieve",
	},
	ColorPaletteInformationModelMove: {
		UID:      ColorPaletteInformationModelMove,
		Name:     "Color Palette Information Model Move",
		Category: "Query/Retrieve",
	},
	ColorPaletteInformationModelGet: {
		UID:      ColorPaletteInformationModelGet,
		Name:     "Color Palette Information Model Get",
		Category: "Query/Retrieve",
	},
	GenericImplantTemplateInformationModelFind: {
		UID:      GenericImplantTemplateInformationModelFind,
		Name:     "Generic Implant Template Information Model Find",
		Category: "Query/Retrieve",
	},
	GenericImplantTemplateInformationModelMove: {
		UID:      GenericImplantTemplateInformationModelMove,
		Name:     "Generic Implant Template Information Model Move",
		Category: "Query/Retrieve",
	},
	GenericImplantTemplateInformationModelGet: {
		UID:      GenericImplantTemplateInformationModelGet,
		Name:     "Generic Implant Template Information Model Get",
		Category: "Query/Retrieve",
	},
	ImplantAssemblyTemplateInformationModelFind: {
		UID:      ImplantAssemblyTemplateInformationModelFind,
		Name:     "Implant Assembly Template Information Model Find",
		Category: "Query/Retrieve",
	},
	ImplantAssemblyTemplateInformationModelMove: {
		UID:      ImplantAssemblyTemplateInformationModelMove,
		Name:     "Implant Assembly Template Information Model Move",
		Category: "Query/Retrieve",
	},
	ImplantAssemblyTemplateInformationModelGet: {
		UID:      ImplantAssemblyTemplateInformationModelGet,
		Name:     "Implant Assembly Template Information Model Get",
		Category: "Query/Retrieve",
	},
	ImplantTemplateGroupInformationModelFind: {
		UID:      ImplantTemplateGroupInformationModelFind,
		Name:     "Implant Template Group Information Model Find",
		Category: "Query/Retrieve",
	},
	ImplantTemplateGroupInformationModelMove: {
		UID:      ImplantTemplateGroupInformationModelMove,
		Name:     "Implant Template Group Information Model Move",
		Category: "Query/Retrieve",
	},
	ImplantTemplateGroupInformationModelGet: {
		UID:      ImplantTemplateGroupInformationModelGet,
		Name:     "Implant Template Group Information Model Get",
		Category: "Query/Retrieve",
	},
	// Worklist (registry completion)
	GeneralPurposeWorklistInformationModelFind: {
		UID:      GeneralPurposeWorklistInformationModelFind,
		Name:     "General Purpose Worklist Information Model Find",
		Category: "Worklist",
	},
	// Procedure Step (registry completion)
	GeneralPurposeScheduledProcedureStepSOPClass: {
		UID:      GeneralPurposeScheduledProcedureStepSOPClass,
		Name:     "General Purpose Scheduled Procedure Step SOP Class",
		Category: "Procedure Step",
	},
	GeneralPurposePerformedProcedureStepSOPClass: {
		UID:      GeneralPurposePerformedProcedureStepSOPClass,
		Name:     "General Purpose Performed Procedure Step SOP Class",
		Category: "Procedure Step",
	},
	ModalityPerformedProcedureStepRetrieveSOPClass: {
		UID:      ModalityPerformedProcedureStepRetrieveSOPClass,
		Name:     "Modality Performed Procedure Step Retrieve SOP Class",
		Category: "Procedure Step",
	},
	ModalityPerformedProcedureStepNotificationSOPClass: {
		UID:      ModalityPerformedProcedureStepNotificationSOPClass,
		Name:     "Modality Performed Procedure Step Notification SOP Class",
		Category: "Procedure Step",
	},
	// Unified Procedure Step (registry completion)
	UnifiedProcedureStepPushSOPClass: {
		UID:      UnifiedProcedureStepPushSOPClass,
		Name:     "Unified Procedure Step Push SOP Class",
		Category: "Unified Procedure Step",
	},
	UnifiedProcedureStepWatchSOPClass: {
		UID:      UnifiedProcedureStepWatchSOPClass,
		Name:     "Unified Procedure Step Watch SOP Class",
		Category: "Unified Procedure Step",
	},
	UnifiedProcedureStepPullSOPClass: {
		UID:      UnifiedProcedureStepPullSOPClass,
		Name:     "Unified Procedure Step Pull SOP Class",
		Category: "Unified Procedure Step",
	},
	UnifiedProcedureStepEventSOPClass: {
		UID:      UnifiedProcedureStepEventSOPClass,
		Name:     "Unified Procedure Step Event SOP Class",
		Category: "Unified Procedure Step",
	},
	UnifiedProcedureStepQuerySOPClass: {
		UID:      UnifiedProcedureStepQuerySOPClass,
		Name:     "Unified Procedure Step Query SOP Class",
		Category: "Unified Procedure Step",
	},
	// Storage Commitment (registry completion)
	StorageCommitmentPullModelSOPClass: {
		UID:      StorageCommitmentPullModelSOPClass,
		Name:     "Storage Commitment Pull Model SOP Class",
		Category: "Storage Commitment",
	},
}
