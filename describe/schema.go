package describe

// ImageDescriptionSchema validates one finalized description document, or
// the error record standing in for a failed file.
const ImageDescriptionSchema = `{
    "oneOf": [
        {
            "type": "object",
            "properties": {
                "MAPLatitude": {
                    "type": "number",
                    "minimum": -90,
                    "maximum": 90
                },
                "MAPLongitude": {
                    "type": "number",
                    "minimum": -180,
                    "maximum": 180
                },
                "MAPCaptureTime": {
                    "type": "string",
                    "pattern": "^[0-9]{4}_[0-9]{2}_[0-9]{2}_[0-9]{2}_[0-9]{2}_[0-9]{2}_[0-9]+$"
                },
                "MAPAltitude": {
                    "type": "number"
                },
                "MAPCompassHeading": {
                    "type": "object",
                    "properties": {
                        "TrueHeading": {
                            "type": "number"
                        },
                        "MagneticHeading": {
                            "type": "number"
                        }
                    },
                    "required": [
                        "TrueHeading",
                        "MagneticHeading"
                    ],
                    "additionalProperties": false
                },
                "MAPSequenceUUID": {
                    "type": "string"
                },
                "MAPOrientation": {
                    "type": "integer"
                },
                "MAPDeviceMake": {
                    "type": "string"
                },
                "MAPDeviceModel": {
                    "type": "string"
                },
                "MAPGPSAccuracyMeters": {
                    "type": "number"
                },
                "MAPMetaTags": {
                    "type": "object"
                },
                "filename": {
                    "type": "string"
                }
            },
            "required": [
                "MAPLatitude",
                "MAPLongitude",
                "MAPCaptureTime",
                "filename"
            ],
            "additionalProperties": false
        },
        {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "type": {
                            "type": "string"
                        },
                        "message": {
                            "type": "string"
                        }
                    },
                    "required": [
                        "type",
                        "message"
                    ],
                    "additionalProperties": false
                },
                "filename": {
                    "type": "string"
                }
            },
            "required": [
                "error",
                "filename"
            ],
            "additionalProperties": false
        }
    ]
}`
