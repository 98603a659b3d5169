package services

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAverageKmPerDay(t *testing.T) {
	jan1 := testutil.Day(2026, time.January, 1)
	tests := []struct {
		name   string
		visits []visit
		avg    float64
		ok     bool
	}{
		{
			name:   "thirty days apart",
			visits: []visit{{MileageAtIntake: 10000, CreatedAt: jan1}, {MileageAtIntake: 13000, CreatedAt: jan1.AddDate(0, 0, 30)}},
			avg:    100,
			ok:     true,
		},
		{
			name: "only first and last count",
			visits: []visit{
				{MileageAtIntake: 10000, CreatedAt: jan1},
				{MileageAtIntake: 90000, CreatedAt: jan1.AddDate(0, 0, 5)},
				{MileageAtIntake: 12000, CreatedAt: jan1.AddDate(0, 0, 10)},
			},
			avg: 200,
			ok:  true,
		},
		{
			name:   "partial days are dropped",
			visits: []visit{{MileageAtIntake: 1000, CreatedAt: jan1}, {MileageAtIntake: 1300, CreatedAt: jan1.Add(36 * time.Hour)}},
			avg:    300,
			ok:     true,
		},
		{
			name:   "same day",
			visits: []visit{{MileageAtIntake: 1000, CreatedAt: jan1}, {MileageAtIntake: 1300, CreatedAt: jan1.Add(5 * time.Hour)}},
		},
		{
			name:   "odometer went back",
			visits: []visit{{MileageAtIntake: 5000, CreatedAt: jan1}, {MileageAtIntake: 4000, CreatedAt: jan1.AddDate(0, 1, 0)}},
		},
		{
			name:   "odometer did not move",
			visits: []visit{{MileageAtIntake: 5000, CreatedAt: jan1}, {MileageAtIntake: 5000, CreatedAt: jan1.AddDate(0, 1, 0)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, ok := averageKmPerDay(tt.visits)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.avg, avg, 0.0001)
		})
	}
}

func TestNextServiceMileage(t *testing.T) {
	tests := []struct {
		current, interval, want int
	}{
		{19000, 10000, 20000},
		{20000, 10000, 30000},
		{0, 5000, 5000},
		{14999, 15000, 15000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextServiceMileage(tt.current, tt.interval), "%d/%d", tt.current, tt.interval)
	}
}

type predictorFixture struct {
	db       *gorm.DB
	shop     *models.Shop
	owner    *models.Customer
	car      *models.Car
	notifier *MockNotifier
	asOf     time.Time
}

// newPredictorFixture seeds a car driving 100 km a day that is 1000 km
// short of its next service.
func newPredictorFixture(t *testing.T) *predictorFixture {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors", testutil.WithSMS())
	owner := testutil.CreateCustomer(t, db, shop.ID, "+359888123456")
	car := testutil.CreateCar(t, db, shop.ID, owner.ID, "CA1234AB", 19000)
	testutil.CreateWorkOrder(t, db, car, models.WorkOrderDone, 10000, testutil.Day(2026, time.January, 1))
	testutil.CreateWorkOrder(t, db, car, models.WorkOrderDone, 13000, testutil.Day(2026, time.January, 31))
	return &predictorFixture{
		db:       db,
		shop:     shop,
		owner:    owner,
		car:      car,
		notifier: NewMockNotifier(),
		asOf:     time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (f *predictorFixture) predictor(opts PredictorOptions) *MileagePredictor {
	return NewMileagePredictor(f.db, f.notifier, opts)
}

func TestEvaluateShopFlagsCar(t *testing.T) {
	f := newPredictorFixture(t)
	// open work orders are not part of the visit history
	testutil.CreateWorkOrder(t, f.db, f.car, models.WorkOrderInProgress, 18900, testutil.Day(2026, time.February, 27))

	predictions, err := f.predictor(PredictorOptions{}).EvaluateShop(context.Background(), f.shop.ID, f.asOf)
	require.NoError(t, err)
	require.Len(t, predictions, 1)

	p := predictions[0]
	assert.Equal(t, f.car.ID, p.CarID)
	assert.Equal(t, f.owner.ID, p.CustomerID)
	assert.Equal(t, 20000, p.DueMileage)
	assert.Equal(t, 10, p.PredictedDays)
	assert.InDelta(t, 100, p.AvgKmPerDay, 0.0001)
	assert.Equal(t, "2026-03-11", p.PredictedDate.Format(reminderDateLayout))
	assert.True(t, p.Notified)

	sent := f.notifier.SentOfType(models.MessageServiceReminder)
	require.Len(t, sent, 1)
	assert.Equal(t, "+359888123456", sent[0].Phone)
	assert.Equal(t, f.owner.ID, *sent[0].CustomerID)
	assert.Contains(t, sent[0].Body, "CA1234AB")
}

func TestEvaluateShopCountsVisitAtZeroKm(t *testing.T) {
	db := testutil.NewTestDB(t)
	shop := testutil.CreateShop(t, db, "Sofia Motors", testutil.WithSMS())
	owner := testutil.CreateCustomer(t, db, shop.ID, "+359888123456")
	car := testutil.CreateCar(t, db, shop.ID, owner.ID, "CB7777KK", 9000)
	testutil.CreateWorkOrder(t, db, car, models.WorkOrderDone, 0, testutil.Day(2026, time.January, 1))
	testutil.CreateWorkOrder(t, db, car, models.WorkOrderDone, 3000, testutil.Day(2026, time.January, 31))

	predictions, err := NewMileagePredictor(db, NewMockNotifier(), PredictorOptions{}).
		EvaluateShop(context.Background(), shop.ID, time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.Equal(t, 10000, predictions[0].DueMileage)
	assert.Equal(t, 10, predictions[0].PredictedDays)
	assert.InDelta(t, 100, predictions[0].AvgKmPerDay, 0.0001)
}

func TestEvaluateShopSkips(t *testing.T) {
	tests := []struct {
		name  string
		opts  PredictorOptions
		setup func(t *testing.T, f *predictorFixture)
	}{
		{
			name: "inactive owner",
			setup: func(t *testing.T, f *predictorFixture) {
				require.NoError(t, f.db.Model(f.owner).Update("is_active", false).Error)
			},
		},
		{
			name: "inactive car",
			setup: func(t *testing.T, f *predictorFixture) {
				require.NoError(t, f.db.Model(f.car).Update("is_active", false).Error)
			},
		},
		{
			name: "reminders turned off for car",
			setup: func(t *testing.T, f *predictorFixture) {
				require.NoError(t, f.db.Model(f.car).Update("service_interval_km", 0).Error)
			},
		},
		{
			name: "not enough visits",
			opts: PredictorOptions{MinVisits: 3},
		},
		{
			name: "due beyond lookahead",
			opts: PredictorOptions{LookaheadDays: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPredictorFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			predictions, err := f.predictor(tt.opts).EvaluateShop(context.Background(), f.shop.ID, f.asOf)
			require.NoError(t, err)
			assert.Empty(t, predictions)
			assert.Empty(t, f.notifier.Sent())
		})
	}
}

func TestEvaluateShopUnknownShop(t *testing.T) {
	f := newPredictorFixture(t)
	_, err := f.predictor(PredictorOptions{}).EvaluateShop(context.Background(), f.shop.ID+100, f.asOf)
	assert.True(t, IsNotFound(err))
}

func TestListReminders(t *testing.T) {
	f := newPredictorFixture(t)
	predictor := f.predictor(PredictorOptions{})
	for _, day := range []int{1, 2, 3} {
		_, err := predictor.EvaluateShop(context.Background(), f.shop.ID, f.asOf.AddDate(0, 0, day-1))
		require.NoError(t, err)
	}

	reminders, total, err := predictor.ListReminders(context.Background(), f.shop.ID, ReminderFilter{From: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, reminders, 2)
	assert.Equal(t, "2026-03-03", reminders[0].ReminderDate)

	carID := f.car.ID
	_, total, err = predictor.ListReminders(context.Background(), f.shop.ID, ReminderFilter{CarID: &carID, To: "2026-03-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = predictor.ListReminders(context.Background(), f.shop.ID+1, ReminderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = predictor.ListReminders(context.Background(), f.shop.ID, ReminderFilter{From: "03/02/2026"})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "from", verr.Field)
}
