package pipeline

// Canonical task names. Control requests may carry an integer worker prefix
// on top of these ("5_gpt_email_consumer").
const (
	TaskMailboxReadProducer   = "mailbox_read_producer"
	TaskMailboxReadConsumer   = "mailbox_read_consumer"
	TaskGPTEmailProducer      = "gpt_email_producer"
	TaskDBListenerProducer    = "db_listener_producer"
	TaskGPTEmailConsumer      = "gpt_email_consumer"
	TaskMatchProducer         = "match_producer"
	TaskMatchConsumer         = "match_consumer"
	TaskSendEmailConsumer     = "send_email_consumer"
	TaskQueueCapacityProducer = "queue_capacity_producer"
	TaskFlushQueueProducer    = "flush_queue_producer"
)

// RegisterDefaults installs the full production task set. Nothing is started
// here; every task waits for a control request.
func (s *Supervisor) RegisterDefaults() {
	s.Register(TaskMailboxReadProducer, mailboxReadProducer)
	s.Register(TaskMailboxReadConsumer, mailboxReadConsumer)
	s.Register(TaskGPTEmailProducer, gptEmailProducer)
	s.Register(TaskDBListenerProducer, dbListenerProducer)
	s.Register(TaskGPTEmailConsumer, gptEmailConsumer)
	s.Register(TaskMatchProducer, matchProducer)
	s.Register(TaskMatchConsumer, matchConsumer)
	s.Register(TaskSendEmailConsumer, sendEmailConsumer)
	s.Register(TaskQueueCapacityProducer, queueCapacityProducer)
	s.Register(TaskFlushQueueProducer, flushQueueProducer)
}
