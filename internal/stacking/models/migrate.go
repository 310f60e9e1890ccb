package models

// All returns every stacking model, in migration order
func All() []interface{} {
	return []interface{}{
		&UploadSession{},
		&RawFile{},
		&StackingJob{},
		&StackedFrame{},
	}
}
