package config

type WorkerKeyStruct struct {
	PersistEventsQueue string
	GradingQueue       string
}

var WorkerKey = &WorkerKeyStruct{
	PersistEventsQueue: "persist_proctor_events_queue",
	GradingQueue:       "grading_queue",
}
