package config

type WorkerKeyStruct struct {
	GradeAttemptsQueue     string
	GradeAttemptsDeadQueue string
	PersistAnswersQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	GradeAttemptsQueue:     "grade_attempts_queue",
	GradeAttemptsDeadQueue: "grade_attempts_dead_queue",
	PersistAnswersQueue:    "persist_answers_queue",
}
