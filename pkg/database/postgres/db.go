package pg

const maxSerializationRetries = 3

// ExecuteRetryable retries functions that perform non-transactional database
// operations when they fail with a serialization failure.
func ExecuteRetryable(fn func() error) error {
	var err error
	for i := 0; i < maxSerializationRetries; i++ {
		err = fn()
		if !IsSerializationFailure(err) {
			return err
		}
	}
	return err
}
