package poll

//go:generate mockgen -destination=mock_poll_test.go -package=poll . Requester,Clock
