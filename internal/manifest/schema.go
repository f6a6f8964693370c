package manifest

// manifestSchemaJSON is the structural contract a decoded manifest document
// must satisfy before schema reconciliation or ingestion ever touches it.
// It intentionally only checks shape (types, required keys) — semantic
// rules (single primary key, expression whitelisting) are enforced
// separately in validateSemantics, where the richer Go types are available.
const manifestSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "settings": {
      "type": "object",
      "properties": {
        "batch_size": {"type": "integer", "minimum": 1},
        "timezone": {"type": "string"},
        "import_dirs": {"type": "array", "items": {"type": "string"}}
      }
    },
    "user_profile": {
      "type": "object",
      "properties": {
        "max_heart_rate": {"type": "integer"},
        "resting_heart_rate": {"type": "integer"}
      }
    },
    "tables": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["columns"],
        "properties": {
          "description": {"type": "string"},
          "columns": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "data_type"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "data_type": {"enum": ["INTEGER", "REAL", "TEXT"]},
                "hk_type": {"type": "string"},
                "hk_attribute": {"type": "string"},
                "is_primary_key": {"type": "boolean"},
                "extraction_source": {
                  "enum": ["value", "attribute", "statistics_sum", "metadata_value", "route_ref"]
                },
                "aggregate": {
                  "enum": ["raw", "avg", "sum", "min", "max", "count"]
                },
                "expression": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "external_sources": {
      "type": "object",
      "properties": {
        "ecg": {
          "type": "object",
          "required": ["folder", "file_pattern", "target_table", "payload"],
          "properties": {
            "folder": {"type": "string"},
            "file_pattern": {"type": "string"},
            "target_table": {"type": "string"},
            "metadata_map": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["csv_key", "db_column", "data_type"],
                "properties": {
                  "csv_key": {"type": "string"},
                  "db_column": {"type": "string"},
                  "data_type": {"type": "string"}
                }
              }
            },
            "payload": {
              "type": "object",
              "required": ["db_column", "data_type"],
              "properties": {
                "db_column": {"type": "string"},
                "data_type": {"type": "string"},
                "source_unit": {"type": "string"}
              }
            }
          }
        },
        "routes": {
          "type": "object",
          "required": ["folder", "file_pattern", "target_table", "columns"],
          "properties": {
            "folder": {"type": "string"},
            "file_pattern": {"type": "string"},
            "target_table": {"type": "string"},
            "columns": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["xml_tag", "db_column", "data_type"],
                "properties": {
                  "xml_tag": {"type": "string"},
                  "db_column": {"type": "string"},
                  "data_type": {"type": "string"}
                }
              }
            }
          }
        }
      }
    }
  }
}`
