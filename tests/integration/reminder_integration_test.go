package integration

import (
	"context"
	"testing"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/services"
	"github.com/kendall-kelly/autoshop-crm-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// ReminderIntegrationTestSuite runs the mileage predictor through the real
// notification service and SMS log
type ReminderIntegrationTestSuite struct {
	suite.Suite
	db        *gorm.DB
	ctx       context.Context
	shop      *models.Shop
	customer  *models.Customer
	car       *models.Car
	publisher *services.MockPublisher
	notifier  *services.NotificationService
	predictor *services.MileagePredictor
}

func (suite *ReminderIntegrationTestSuite) SetupSuite() {
	testutil.RequireTestEnvironment(suite.T())
}

// SetupTest seeds a car driven 100 km a day that is 1,000 km short of its
// 20,000 km service
func (suite *ReminderIntegrationTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = testutil.NewTestDB(suite.T())
	suite.shop = testutil.CreateShop(suite.T(), suite.db, "Burgas Service", testutil.WithSMS())
	suite.customer = testutil.CreateCustomer(suite.T(), suite.db, suite.shop.ID, "+359887111222")
	suite.car = testutil.CreateCar(suite.T(), suite.db, suite.shop.ID, suite.customer.ID, "A7777BC", 19000)

	testutil.CreateWorkOrder(suite.T(), suite.db, suite.car, models.WorkOrderDone, 10000, testutil.Day(2026, 1, 1))
	testutil.CreateWorkOrder(suite.T(), suite.db, suite.car, models.WorkOrderDone, 13000, testutil.Day(2026, 1, 31))

	suite.publisher = services.NewMockPublisher()
	suite.notifier = services.NewNotificationService(suite.db, suite.publisher, "autoshop")
	suite.predictor = services.NewMileagePredictor(suite.db, suite.notifier, services.PredictorOptions{})
}

// TestCarDueWithinLookaheadIsReminded checks the estimate and the SMS log
func (suite *ReminderIntegrationTestSuite) TestCarDueWithinLookaheadIsReminded() {
	asOf := testutil.Day(2026, 3, 1)
	predictions, err := suite.predictor.EvaluateShop(suite.ctx, suite.shop.ID, asOf)
	suite.Require().NoError(err)
	suite.Require().Len(predictions, 1)

	p := predictions[0]
	assert.Equal(suite.T(), suite.car.ID, p.CarID)
	assert.InDelta(suite.T(), 100.0, p.AvgKmPerDay, 0.001)
	assert.Equal(suite.T(), 20000, p.DueMileage)
	assert.Equal(suite.T(), 10, p.PredictedDays)
	assert.Equal(suite.T(), testutil.Day(2026, 3, 11), p.PredictedDate)
	assert.True(suite.T(), p.Notified)

	topic := suite.notifier.Topic(suite.shop.ID, models.MessageServiceReminder)
	assert.Equal(suite.T(), 1, suite.publisher.Count(topic))

	var logs []models.SMSLog
	suite.Require().NoError(suite.db.Where("shop_id = ?", suite.shop.ID).Find(&logs).Error)
	suite.Require().Len(logs, 1)
	assert.Equal(suite.T(), models.SMSStatusQueued, logs[0].Status)
	assert.Equal(suite.T(), models.MessageServiceReminder, logs[0].MessageType)

	var shop models.Shop
	suite.Require().NoError(suite.db.First(&shop, suite.shop.ID).Error)
	assert.Equal(suite.T(), 1, shop.SMSUsageCount)
}

// TestOneReminderPerCarPerDay runs the predictor twice on one day and once
// on the next
func (suite *ReminderIntegrationTestSuite) TestOneReminderPerCarPerDay() {
	day := testutil.Day(2026, 3, 1)
	_, err := suite.predictor.EvaluateShop(suite.ctx, suite.shop.ID, day)
	suite.Require().NoError(err)

	again, err := suite.predictor.EvaluateShop(suite.ctx, suite.shop.ID, day.Add(6*time.Hour))
	suite.Require().NoError(err)
	suite.Require().Len(again, 1)
	assert.False(suite.T(), again[0].Notified)

	next, err := suite.predictor.EvaluateShop(suite.ctx, suite.shop.ID, day.AddDate(0, 0, 1))
	suite.Require().NoError(err)
	suite.Require().Len(next, 1)
	assert.True(suite.T(), next[0].Notified)

	topic := suite.notifier.Topic(suite.shop.ID, models.MessageServiceReminder)
	assert.Equal(suite.T(), 2, suite.publisher.Count(topic))

	reminders, total, err := suite.predictor.ListReminders(suite.ctx, suite.shop.ID, services.ReminderFilter{CarID: &suite.car.ID})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(2), total)
	assert.Equal(suite.T(), "2026-03-02", reminders[0].ReminderDate)
}

// TestCarsOutsideTheWindowAreSkipped covers the cases that produce no reminder
func (suite *ReminderIntegrationTestSuite) TestCarsOutsideTheWindowAreSkipped() {
	farOwner := testutil.CreateCustomer(suite.T(), suite.db, suite.shop.ID, "+359887111333")
	far := testutil.CreateCar(suite.T(), suite.db, suite.shop.ID, farOwner.ID, "A1111AA", 14000)
	testutil.CreateWorkOrder(suite.T(), suite.db, far, models.WorkOrderDone, 10000, testutil.Day(2026, 1, 1))
	testutil.CreateWorkOrder(suite.T(), suite.db, far, models.WorkOrderDone, 13000, testutil.Day(2026, 1, 31))

	single := testutil.CreateCar(suite.T(), suite.db, suite.shop.ID, farOwner.ID, "A2222AA", 19900)
	testutil.CreateWorkOrder(suite.T(), suite.db, single, models.WorkOrderDone, 19000, testutil.Day(2026, 1, 1))

	sameDay := testutil.CreateCar(suite.T(), suite.db, suite.shop.ID, farOwner.ID, "A3333AA", 19900)
	testutil.CreateWorkOrder(suite.T(), suite.db, sameDay, models.WorkOrderDone, 19000, testutil.Day(2026, 1, 1))
	testutil.CreateWorkOrder(suite.T(), suite.db, sameDay, models.WorkOrderDone, 19500, testutil.Day(2026, 1, 1).Add(3*time.Hour))

	predictions, err := suite.predictor.EvaluateShop(suite.ctx, suite.shop.ID, testutil.Day(2026, 3, 1))
	suite.Require().NoError(err)
	suite.Require().Len(predictions, 1)
	assert.Equal(suite.T(), suite.car.ID, predictions[0].CarID)
}

// TestDisabledShopsAreLoggedNotSent evaluates every shop, one of them with
// messaging switched off
func (suite *ReminderIntegrationTestSuite) TestDisabledShopsAreLoggedNotSent() {
	quiet := testutil.CreateShop(suite.T(), suite.db, "Quiet Garage")
	owner := testutil.CreateCustomer(suite.T(), suite.db, quiet.ID, "+359887111444")
	car := testutil.CreateCar(suite.T(), suite.db, quiet.ID, owner.ID, "CB0001AA", 19000)
	testutil.CreateWorkOrder(suite.T(), suite.db, car, models.WorkOrderDone, 10000, testutil.Day(2026, 1, 1))
	testutil.CreateWorkOrder(suite.T(), suite.db, car, models.WorkOrderDone, 13000, testutil.Day(2026, 1, 31))

	results, err := suite.predictor.EvaluateAllShops(suite.ctx, testutil.Day(2026, 3, 1))
	suite.Require().NoError(err)
	assert.Len(suite.T(), results[suite.shop.ID], 1)
	_, evaluated := results[quiet.ID]
	assert.False(suite.T(), evaluated, "shops without messaging are not evaluated in the batch")

	// a direct evaluation still records the attempt as skipped
	_, err = suite.predictor.EvaluateShop(suite.ctx, quiet.ID, testutil.Day(2026, 3, 1))
	suite.Require().NoError(err)

	var entry models.SMSLog
	suite.Require().NoError(suite.db.Where("shop_id = ?", quiet.ID).First(&entry).Error)
	assert.Equal(suite.T(), models.SMSStatusSkipped, entry.Status)
	assert.Equal(suite.T(), 0, suite.publisher.Count(suite.notifier.Topic(quiet.ID, models.MessageServiceReminder)))
}

func TestReminderIntegrationSuite(t *testing.T) {
	suite.Run(t, new(ReminderIntegrationTestSuite))
}
